package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/venok/internal/actions"
	"github.com/conneroisu/venok/internal/ui"
)

var buildCmd = &cobra.Command{
	Use:   "build [app]",
	Short: "Build a Venok application",
	Long: `Build the workspace application, or the monorepo project named by app.

Examples:
  venok build                          # Build with the configured builder
  venok build api -w                   # Rebuild the "api" project on change
  venok build -b swc --type-check      # Transpile with swc, type-check alongside
  venok build -p tsconfig.build.json   # Use a specific tsconfig`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

var buildOpts actions.BuildOptions

func init() {
	rootCmd.AddCommand(buildCmd)

	flags := buildCmd.Flags()
	flags.StringVarP(&buildOpts.ConfigPath, "config", "c", "", "Path to the venok-cli configuration file.")
	flags.StringVarP(&buildOpts.TsconfigPath, "path", "p", "", "Path to tsconfig file.")
	flags.BoolVarP(&buildOpts.Watch, "watch", "w", false, "Run in watch mode (live-reload).")
	flags.StringVarP(&buildOpts.Builder, "builder", "b", "", "Builder to be used (tsc, swc).")
	flags.BoolVar(&buildOpts.WatchAssets, "watchAssets", false, "Watch non-ts (e.g., .graphql) files mode.")
	flags.BoolVar(&buildOpts.TypeCheck, "type-check", false, "Enable type checking (when SWC is used).")
	flags.BoolVar(&buildOpts.PreserveWatchOutput, "preserveWatchOutput", false, `Use "preserveWatchOutput" option when using tsc watch mode.`)
	flags.StringVar(&buildOpts.MetricsFile, "metrics-file", "", "Write build metrics in the prometheus text format to this file.")
	flags.SetNormalizeFunc(normalizeBuildFlag)
}

// normalizeBuildFlag accepts the kebab-case spelling of the camelCase flags.
func normalizeBuildFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "watch-assets":
		name = "watchAssets"
	case "preserve-watch-output":
		name = "preserveWatchOutput"
	case "typeCheck":
		name = "type-check"
	}
	return pflag.NormalizedName(name)
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	opts := buildOpts
	if len(args) > 0 {
		opts.App = args[0]
	}

	console := ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())
	action := actions.NewBuildAction(cwd, pluginResolver(cwd, logger), console, logger)
	if err := action.Handle(commandContext(cmd), opts); err != nil {
		return &reportedError{err}
	}
	return nil
}
