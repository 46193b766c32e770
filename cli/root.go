// Package cli implements the adventure-editor commands.
package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"adventure-editor/config"
	"adventure-editor/store"
)

var configPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "adventure-editor",
	Short:        "Editor and player backend for branching adventures",
	Long:         "Serves the adventure editor API and validates, simulates and inspects adventures.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $ADVENTURE_CONFIG, then built-in defaults)")
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv(config.EnvPrefix + "CONFIG")
}

func loadConfig() (config.Config, error) {
	return config.Load(getConfigPath())
}

// openStore opens the store selected by cfg.
func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverFile:
		return store.NewFileStore(cfg.DataDir)
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	}
	return nil, fmt.Errorf("%w: store_driver %q", config.ErrInvalid, cfg.StoreDriver)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
