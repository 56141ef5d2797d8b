package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"example.com/cadugate/internal/capture"
	"example.com/cadugate/internal/common"
	"example.com/cadugate/internal/config"
	"example.com/cadugate/internal/dict"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var (
	configPath   string
	dictPath     string
	logDir       string
	showProgress bool
	showMetrics  bool
)

// Resolved by the root pre-run hook and shared by every subcommand.
var (
	cfg          config.Config
	store        *dict.Store
	metrics      *common.Metrics
	stopProgress = func() {}
	logCloser    io.Closer
)

var rootCmd = &cobra.Command{
	Use:     "cadutool",
	Short:   "Build, split and inspect CCSDS CADU frame streams",
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
	Long: `cadutool converts between CCSDS space packets and 1024-byte CADU frames.
Binary streams are read from --in and written to --out; "-" selects stdin and
stdout, and a .gz or .zst suffix compresses transparently.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML configuration file")
	pf.StringVar(&dictPath, "dict", "", "name dictionary (YAML or JSON) merged over the built-in names")
	pf.StringVar(&logDir, "log-dir", "", "directory for the rotated log file")
	pf.BoolVar(&showProgress, "progress", false, "print progress updates to stderr")
	pf.BoolVar(&showMetrics, "metrics", false, "log stream counters when done")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("log-dir") {
		cfg.Logs.Directory = logDir
	}
	logCloser, err = common.SetupLogging(cfg.LogOptions())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dict") {
		cfg.Dictionary = dictPath
	}
	store, err = dict.LoadWithBuiltin(cfg.Dictionary)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}
	if showProgress || showMetrics {
		metrics = common.NewMetrics()
		metrics.Start()
	}
	if showProgress {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, time.Second)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	stopProgress()
	stopProgress = func() {}
	if metrics != nil {
		metrics.Stop()
		if showMetrics {
			common.Logf("%s: %s", cmd.Name(), metrics.Snapshot().Summary())
		}
		metrics = nil
	}
	if logCloser != nil {
		err := logCloser.Close()
		logCloser = nil
		return err
	}
	return nil
}

// openInput opens a capture and feeds its size to the progress printer.
func openInput(path string) (*capture.Reader, error) {
	in, err := capture.Open(path)
	if err != nil {
		return nil, err
	}
	if metrics != nil && in.Size > 0 {
		metrics.SetTotalBytes(in.Size)
	}
	return in, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		stopProgress()
		common.Fatalf("%v", err)
	}
}
