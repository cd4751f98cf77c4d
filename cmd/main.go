package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"nbprof/internal/config"
	"nbprof/internal/linemap"
	"nbprof/internal/logging"
	"nbprof/internal/notebook"
	"nbprof/internal/profiler"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const Version = "1.0.0"

func loadEnvironment() {
	logger := logging.GetLogger()

	// Try to load .env file from current directory
	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		} else {
			logger.WithField("file", envFile).Debug("Loaded environment variables")
		}
	} else {
		// Try to load from the application directory
		if execPath, err := os.Executable(); err == nil {
			appDir := filepath.Dir(execPath)
			envFile = filepath.Join(appDir, ".env")
			if _, err := os.Stat(envFile); err == nil {
				if err := godotenv.Load(envFile); err != nil {
					logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
				} else {
					logger.WithField("file", envFile).Debug("Loaded environment variables")
				}
			}
		}
	}
}

func loadProfileConfig(configFile string) (*config.ProfileConfig, error) {
	logger := logging.GetLogger()

	if configFile == "" {
		return config.Default(), nil
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Failed to load configuration")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Profile.LogLevel != "" {
		if err := logging.SetLogLevel(cfg.Profile.LogLevel); err != nil {
			logger.WithField("log_level", cfg.Profile.LogLevel).WithError(err).Warn("Invalid log level in config, using INFO")
			logging.SetLogLevel("info")
		}
	}

	return cfg, nil
}

func runProfile(notebookPath, configFile string) error {
	logger := logging.GetLogger()

	cfg, err := loadProfileConfig(configFile)
	if err != nil {
		return err
	}

	outputPath, err := profiler.Run(notebookPath, cfg)
	if err != nil {
		logger.WithField("notebook", notebookPath).WithError(err).Error("Profiling run failed")
		return err
	}

	fmt.Printf("[profiler] Saved output to: %s\n", outputPath)
	return nil
}

func validateNotebook(notebookPath string) error {
	logger := logging.GetLogger()

	cells, err := notebook.Read(notebookPath)
	if err != nil {
		logger.WithField("notebook", notebookPath).WithError(err).Error("Notebook validation failed")
		return err
	}

	codeCells := notebook.CodeCells(cells)
	_, index := linemap.Build(codeCells)

	logger.WithFields(logrus.Fields{
		"notebook":     notebookPath,
		"total_cells":  len(cells),
		"code_cells":   len(codeCells),
		"mapped_lines": index.Len(),
	}).Info("Notebook is readable")
	return nil
}

func Execute() error {
	loadEnvironment()

	var configFile string
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "nbprof",
		Short: "Notebook line profiler",
		Long:  "Profiles Go notebook code cells line by line and classifies each cell by its dominant performance characteristic",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run <notebook.ipynb>",
		Short: "Profile a notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(args[0], configFile)
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to profiler configuration file")

	validateCmd := &cobra.Command{
		Use:   "validate <notebook.ipynb>",
		Short: "Check that a notebook parses into code cells without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateNotebook(args[0])
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd.Execute()
}
