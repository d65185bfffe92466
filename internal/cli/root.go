package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rfprag/config"
	"rfprag/internal/logger"
	"rfprag/internal/metrics"
)

var (
	cfgFile     string
	cfg         *config.Config
	rootDir     string
	logLevel    string
	metricsFile string

	log  = logger.Nop()
	mets *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "rfprag",
	Short: "Project-scoped retrieval and RFP response drafting",
	Long: `rfprag indexes the documents of each RFP project into its own semantic
index, answers questions grounded in that index, and drafts a structured
RFP response section by section with a language model.

Documents live under <sources.root>/<project id>/. The index is stored in
.rfprag/index.db within the working directory.

Example usage:
  rfprag index --project 12                      # Index project 12
  rfprag query --project 12 -q "when is it due?" # Ask a grounded question
  rfprag draft --project 12                      # Draft the full response`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		log = logger.New(logger.Config{Level: level, Pretty: cfg.Logging.Pretty})
		mets = metrics.New()

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if err := mets.WriteToTextfile(metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rfprag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "working directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
