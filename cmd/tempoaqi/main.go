package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrissnell/tempoaqi/internal/log"
	"github.com/chrissnell/tempoaqi/pkg/config"
)

var (
	cfgFile    string
	cfgBackend string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "tempoaqi",
	Short: "Composite air quality index from TEMPO satellite columns",
	Long: "Serves a composite 0-500 air quality index for geographic points, fused from " +
		"NO2, HCHO and O3 column products searched and downloaded from NASA Earthdata.",
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	rootCmd.PersistentFlags().StringVar(&cfgBackend, "config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Turn on debugging output")

	rootCmd.AddCommand(serveCmd, probeCmd, versionCmd, convertCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and initializes logging from it.
func setup() (*config.ConfigData, error) {
	cfgData, err := loadConfig(cfgFile, cfgBackend)
	if err != nil {
		return nil, err
	}

	if err := log.InitWithFile(debug, log.FileOptions{
		Path:       cfgData.Log.File,
		MaxSizeMB:  cfgData.Log.MaxSizeMB,
		MaxBackups: cfgData.Log.MaxBackups,
		MaxAgeDays: cfgData.Log.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfgData, nil
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider

	switch cfgBackend {
	case "yaml":
		// A missing YAML file means "all defaults".
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			return config.ParseYAML(nil)
		}
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		p, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		provider = p
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config. Did you pass the --config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}
