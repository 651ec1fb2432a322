package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/venok/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [app]",
	Short: "Show the resolved build configuration",
	Long: `Print the configuration a build of app would use, with defaults filled
in and project overrides applied, as YAML.

Examples:
  venok config                   # Workspace root application
  venok config api               # The "api" monorepo project
  venok config -c venok.json     # Read a specific configuration file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigShow,
}

var configFile string

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the venok-cli configuration file.")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.NewLoader(cwd).Load(configFile)
	if err != nil {
		return err
	}
	app := ""
	if len(args) > 0 {
		app = args[0]
	}
	resolved, err := cfg.ForApp(app)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(resolved); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return encoder.Close()
}
