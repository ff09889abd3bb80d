package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/NicolasDenoyelle/starbind/internal/binder"
	"github.com/NicolasDenoyelle/starbind/internal/config"
	"github.com/NicolasDenoyelle/starbind/internal/logging"
	"github.com/NicolasDenoyelle/starbind/internal/permutation"
	"github.com/NicolasDenoyelle/starbind/internal/topology"

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

func main() {
	logger := logging.GetLogger()

	loadEnvironment()

	var configFile string
	var logLevel, traceLogLevel string
	var threadCount int
	cfg := config.DefaultConfig()
	var method string

	rootCmd := &cobra.Command{
		Use:   "starbind",
		Short: "Bind application threads and processes to hardware locality resources",
		Long: "starbind launches a command and binds the threads and processes it creates " +
			"to an ordered list of topology resources (cores, caches, packages), using " +
			"OMP_PLACES hints, MPI local ranks or live ptrace interception.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			if traceLogLevel != "" {
				if err := logging.SetTraceLogLevel(traceLogLevel); err != nil {
					return fmt.Errorf("invalid trace log level: %w", err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&traceLogLevel, "trace-log-level", "", "Set log level of the trace event loop")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional yaml configuration file")
	rootCmd.PersistentFlags().StringVarP(&method, "method", "m", string(config.MethodAuto), "Binding method (auto, mpi, openmp, ptrace)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Binding.ResourceKind, "type", "t", cfg.Binding.ResourceKind, "Topology object type to bind to (pu, core, l3, package, numa)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Binding.Permutation, "permutation", "p", "", "Resource permutation (identity, reverse, stride:N, range:A-B, shuffle[:seed])")
	rootCmd.PersistentFlags().StringVar(&cfg.Binding.CounterFile, "counter-file", cfg.Binding.CounterFile, "Shared ticket counter file for cohort mode")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Binding.Verbose, "verbose", "v", false, "Log the resource permutation before running")

	runCmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command with its threads and processes bound",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := effectiveConfig(configFile, cfg, method, cmd.Flags().Changed, args, true)
			if err != nil {
				return err
			}
			return runBinding(loaded)
		},
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the static placement plan without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := effectiveConfig(configFile, cfg, method, cmd.Flags().Changed, nil, false)
			if err != nil {
				return err
			}
			return printPlan(loaded, threadCount)
		},
	}
	planCmd.Flags().IntVarP(&threadCount, "threads", "n", 0, "Number of anticipated threads (default: one per resource)")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return fmt.Errorf("--config is required")
			}
			if _, err := config.LoadConfig(configFile); err != nil {
				logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
				return err
			}
			logger.WithField("config_file", configFile).Info("Configuration is valid")
			return nil
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Fatal("Command execution failed")
	}
}

// effectiveConfig merges the optional config file with command line
// flags. A flag the user set explicitly wins over the file value;
// changed reports whether a named flag was set. Positional args become
// the target command, required unless requireCommand is false.
func effectiveConfig(configFile string, flagCfg *config.BindConfig, method string, changed func(string) bool, args []string, requireCommand bool) (*config.BindConfig, error) {
	cfg := flagCfg
	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if changed("type") {
			loaded.Binding.ResourceKind = flagCfg.Binding.ResourceKind
		}
		if changed("permutation") {
			loaded.Binding.Permutation = flagCfg.Binding.Permutation
		}
		if changed("counter-file") {
			loaded.Binding.CounterFile = flagCfg.Binding.CounterFile
		}
		loaded.Binding.Verbose = loaded.Binding.Verbose || flagCfg.Binding.Verbose
		cfg = loaded
	}
	if changed("method") && method != "" {
		cfg.Binding.Method = config.Method(method)
	}
	if len(args) > 0 {
		cfg.Binding.Command = strings.Join(args, " ")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if requireCommand && cfg.Binding.Command == "" {
		return nil, fmt.Errorf("a target command is required")
	}
	if cfg.Binding.LogLevel != "" {
		if err := logging.SetLogLevel(cfg.Binding.LogLevel); err != nil {
			logging.GetLogger().WithField("log_level", cfg.Binding.LogLevel).Warn("Invalid log level in config, keeping current")
		}
	}
	if cfg.Binding.TraceLog != "" {
		if err := logging.SetTraceLogLevel(cfg.Binding.TraceLog); err != nil {
			logging.GetLogger().WithField("trace_log_level", cfg.Binding.TraceLog).Warn("Invalid trace log level in config, keeping current")
		}
	}
	return cfg, nil
}

// buildSequence enumerates the requested resource kind and applies the
// configured permutation.
func buildSequence(cfg *config.BindConfig) (*binder.Sequence, error) {
	kind, err := topology.ParseKind(cfg.Binding.ResourceKind)
	if err != nil {
		return nil, err
	}

	topo, err := topology.Discover()
	if err != nil {
		return nil, fmt.Errorf("topology discovery failed: %w", err)
	}

	resources := topo.Resources(kind)
	if len(resources) == 0 {
		return nil, fmt.Errorf("no %s resources on this node", kind)
	}

	permuted, err := permutation.Apply(resources, cfg.Binding.Permutation)
	if err != nil {
		return nil, err
	}
	return binder.NewSequence(permuted)
}

func runBinding(cfg *config.BindConfig) error {
	logger := logging.GetLogger()

	seq, err := buildSequence(cfg)
	if err != nil {
		return err
	}
	if cfg.Binding.Verbose {
		logger.WithField("sequence", seq.String()).Info("Resource permutation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, shutting down")
		cancel()
	}()

	orch := binder.New(cfg.Binding.CounterFile)
	report, err := orch.Run(ctx, cfg.Binding.Method, seq, strings.Fields(cfg.Binding.Command))
	if report != nil {
		logReport(report)
	}
	if err != nil {
		logger.WithError(err).Error("Binding run aborted")
		return err
	}

	logger.WithFields(logrus.Fields{
		"assignments": len(report.Assignments),
		"exit_status": report.ExitStatus,
	}).Info("Binding run completed")
	if report.ExitStatus != 0 {
		os.Exit(report.ExitStatus)
	}
	return nil
}

func logReport(report *binder.Report) {
	logger := logging.GetLogger()
	for _, a := range report.Assignments {
		fields := logrus.Fields{
			"context":  a.Context.String(),
			"resource": a.Resource.String(),
		}
		switch {
		case a.Err != nil:
			logger.WithFields(fields).WithError(a.Err).Warn("Context left unbound")
		case a.Vanished:
			logger.WithFields(fields).Info("Context exited before binding")
		default:
			logger.WithFields(fields).Info("Bound")
		}
	}
	if report.Partial() {
		logger.WithField("failed", len(report.Failed())).Warn("Run completed with partial assignments")
	}
}

func printPlan(cfg *config.BindConfig, threadCount int) error {
	seq, err := buildSequence(cfg)
	if err != nil {
		return err
	}
	if threadCount <= 0 {
		threadCount = seq.Len()
	}

	fmt.Printf("OMP_PLACES=%s\n", binder.OMPPlaces(seq))
	for i, cpus := range binder.PlanPlaces(seq, threadCount) {
		fmt.Printf("thread %d -> %s\n", i, cpus.String())
	}
	return nil
}
