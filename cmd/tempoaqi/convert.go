package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrissnell/tempoaqi/pkg/config"
)

var (
	convertYAML   string
	convertSQLite string
	convertForce  bool
)

var convertCmd = &cobra.Command{
	Use:   "config-convert",
	Short: "Convert a YAML configuration file to a SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// Check if SQLite file already exists
		if _, err := os.Stat(convertSQLite); err == nil && !convertForce {
			return fmt.Errorf("SQLite file already exists: %s (use --force to overwrite)", convertSQLite)
		}

		data, err := os.ReadFile(convertYAML)
		if err != nil {
			return err
		}

		// Convert the file as written so defaults keep tracking the binary
		// and credentials from the environment are not persisted.
		cfgData, err := config.DecodeYAML(data)
		if err != nil {
			return fmt.Errorf("error loading YAML configuration: %w", err)
		}
		if _, err := config.ParseYAML(data); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		provider, err := config.NewSQLiteProvider(convertSQLite)
		if err != nil {
			return err
		}
		defer provider.Close()

		if err := provider.SaveConfig(cfgData); err != nil {
			return fmt.Errorf("error saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Converted %s to %s (%d products)\n", convertYAML, convertSQLite, len(cfgData.Products))
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertYAML, "yaml", "", "Path to YAML configuration file (required)")
	convertCmd.Flags().StringVar(&convertSQLite, "sqlite", "", "Path to SQLite database file (required)")
	convertCmd.Flags().BoolVar(&convertForce, "force", false, "Overwrite an existing SQLite database")
	convertCmd.MarkFlagRequired("yaml")
	convertCmd.MarkFlagRequired("sqlite")
}
