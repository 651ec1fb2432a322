// Package cmd provides the venok command line.
//
// Tool settings come from, in order of precedence: command-line flags,
// VENOK_-prefixed environment variables and a .env file in the working
// directory. The workspace build configuration (venok-cli.json and friends)
// is read by the build command itself.
//
// Environment Variables:
//
//	VENOK_LOG_LEVEL:   debug, info, warn or error
//	VENOK_LOG_FORMAT:  text or json
//	VENOK_PLUGIN_PATH: extra directories searched for interpreted plugins
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "venok",
	Short: "Build Venok applications",
	Long: `venok compiles Venok TypeScript applications with tsc or swc.

Quick Start:
  venok build                 Build the workspace application
  venok build api --watch     Rebuild the "api" project on change
  venok build -b swc          Transpile with swc
  venok config api            Show the resolved configuration of "api"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	var done *reportedError
	if err != nil && !errors.As(err, &done) {
		ui.NewConsole(rootCmd.OutOrStdout(), rootCmd.ErrOrStderr()).Error("%s", err.Error())
	}
	return err
}

// commandContext returns the context cobra attached to cmd, if any.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// reportedError marks a failure the command already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig loads .env when present and binds VENOK_ environment variables.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Ignoring unreadable .env file:", err)
	}

	viper.SetEnvPrefix("VENOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// newLogger builds the diagnostic logger from the bound settings.
func newLogger() (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	format := viper.GetString("log-format")
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	}), nil
}
