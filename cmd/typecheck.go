package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/venok/internal/compiler"
	"github.com/conneroisu/venok/internal/plugins"
	"github.com/conneroisu/venok/internal/ui"
)

// typeCheckCmd is the entry point of the type checker forked by the swc
// builder in watch mode. It runs until killed.
var typeCheckCmd = &cobra.Command{
	Use:    compiler.TypeCheckCommand + " <tsconfigPath> <appName> <sourceRoot> <plugins>",
	Hidden: true,
	Args:   cobra.ExactArgs(4),
	RunE:   runTypeCheck,
}

func init() {
	rootCmd.AddCommand(typeCheckCmd)
}

func runTypeCheck(cmd *cobra.Command, args []string) error {
	parsed, err := compiler.ParseTypeCheckArgs(args)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	console := ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())
	loader := plugins.NewLoader(pluginResolver(cwd, logger), logger)
	checker := compiler.NewForkedTypeChecker(compiler.NewBase(cwd, loader, console, logger))
	return checker.Run(commandContext(cmd), parsed.Config(), parsed.TsconfigPath, parsed.AppName, true)
}
