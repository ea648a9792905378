package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iwvelando/emi-optimizer/internal/config"
	"github.com/iwvelando/emi-optimizer/internal/metrics"
	"github.com/iwvelando/emi-optimizer/internal/optimizer"
	"github.com/iwvelando/emi-optimizer/internal/server"
	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/output"
	"github.com/iwvelando/emi-optimizer/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	// Logs go to stderr unless a file is configured so that stdout stays
	// clean for schedule output.
	zapConfig.OutputPaths = []string{"stderr"}
	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

// cliOptions holds the persistent and loan override flags.
type cliOptions struct {
	configPath   string
	logLevel     string
	outputFormat string

	principal  float64
	annualRate float64
	duration   int
	manualEMI  float64
	startMonth int
	startYear  int
}

// session is what every subcommand needs after flags are resolved.
type session struct {
	conf         *config.Configuration
	logger       *zap.Logger
	outputFormat string
	params       amortization.LoanParameters
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "emi-optimizer",
		Short:         "Amortization schedules and prepayment strategies for fixed-rate loans",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&opts.outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	flags.Float64Var(&opts.principal, "principal", 0, "loan principal override")
	flags.Float64Var(&opts.annualRate, "rate", 0, "annual interest rate override in percent")
	flags.IntVar(&opts.duration, "duration", 0, "loan duration override in months")
	flags.Float64Var(&opts.manualEMI, "emi", 0, "manual EMI override")
	flags.IntVar(&opts.startMonth, "start-month", 0, "loan start month override (1-12)")
	flags.IntVar(&opts.startYear, "start-year", 0, "loan start year override")

	root.AddCommand(
		newScheduleCommand(opts, stdout),
		newSimulateCommand(opts, stdout),
		newSuggestCommand(opts, stdout),
		newServeCommand(opts),
	)
	return root
}

func newScheduleCommand(opts *cliOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Print the baseline amortization schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.logger.Sync() }()

			result, err := amortization.NewCalculator(s.logger).Amortize(s.params)
			if err != nil {
				return fmt.Errorf("failed to compute amortization schedule: %w", err)
			}
			for _, warning := range result.Warnings {
				s.logger.Warn(warning, zap.String("op", "main.schedule"))
			}

			switch s.outputFormat {
			case constants.OutputFormatCSV:
				output.CsvSchedule(stdout, result.Schedule)
			case constants.OutputFormatJSON:
				return output.JSON(stdout, result)
			default:
				output.PrettySchedule(stdout, result)
			}
			return nil
		},
	}
}

func newSimulateCommand(opts *cliOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Apply the configured prepayments and EMI changes to the loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.logger.Sync() }()

			events, err := s.conf.SimulationEvents()
			if err != nil {
				return fmt.Errorf("failed to parse events: %w", err)
			}

			calculator := amortization.NewCalculator(s.logger)
			emi, err := calculator.ComputeEMI(s.params)
			if err != nil {
				return fmt.Errorf("failed to compute EMI: %w", err)
			}
			baseline, err := calculator.ComputeAmortization(s.params)
			if err != nil {
				return fmt.Errorf("failed to compute amortization schedule: %w", err)
			}
			result := calculator.Simulate(s.params, emi, events)

			switch s.outputFormat {
			case constants.OutputFormatCSV:
				output.CsvSchedule(stdout, result.Schedule)
			case constants.OutputFormatJSON:
				return output.JSON(stdout, result)
			default:
				output.PrettySimulation(stdout, baseline, result)
			}
			return nil
		},
	}
}

func newSuggestCommand(opts *cliOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Rank prepayment and EMI strategies for the loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.logger.Sync() }()

			suggestions, err := optimizer.NewRunner(s.logger).Suggest(s.params, s.conf.Preferences)
			if err != nil {
				return fmt.Errorf("failed to generate suggestions: %w", err)
			}

			switch s.outputFormat {
			case constants.OutputFormatCSV:
				output.CsvSuggestions(stdout, suggestions)
			case constants.OutputFormatJSON:
				return output.JSON(stdout, suggestions)
			default:
				output.PrettySuggestions(stdout, suggestions)
			}
			return nil
		},
	}
}

func newServeCommand(opts *cliOptions) *cobra.Command {
	var serverConfigPath, address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the loan API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverConf, err := server.LoadConfig(serverConfigPath)
			if err != nil {
				return err
			}
			if address != "" {
				serverConf.Address = address
			}

			logger, err := initializeLogger(serverConf.Logging, opts.logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			handler := server.NewHandler(logger, server.Options{
				MaxUploadSize: serverConf.UploadSizeBytes(),
				Version:       version,
				RateLimit:     serverConf.RateLimit,
				Metrics:       metrics.New(),
			})
			defer handler.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, serverConf, handler)
		},
	}

	cmd.Flags().StringVar(&serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, logger *zap.Logger, conf *server.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         conf.Address,
		Handler:      handler,
		ReadTimeout:  conf.Timeouts.ReadDuration(),
		WriteTimeout: conf.Timeouts.WriteDuration(),
		IdleTimeout:  conf.Timeouts.IdleDuration(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("op", "main.serve"),
			zap.String("address", conf.Address),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.String("op", "main.serve"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Timeouts.ShutdownDuration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// open loads the configuration, applies flag overrides and builds the logger.
// A missing default config file is tolerated so that a loan can be given
// entirely through flags.
func (o *cliOptions) open(cmd *cobra.Command) (*session, error) {
	conf, err := config.LoadConfiguration(o.configPath)
	if err != nil {
		if !cmd.Flags().Changed("config") && errors.Is(err, fs.ErrNotExist) {
			conf = config.Empty()
		} else {
			return nil, fmt.Errorf("failed to load configuration at %s: %w", o.configPath, err)
		}
	}
	if err := o.applyLoanOverrides(cmd, conf); err != nil {
		return nil, err
	}

	logger, err := initializeLogger(conf.Logging, o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// CLI override takes precedence over config
	outputFormat := conf.Output.Format
	if o.outputFormat != "" {
		outputFormat = o.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return nil, err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	return &session{
		conf:         conf,
		logger:       logger,
		outputFormat: outputFormat,
		params:       conf.LoanParameters(time.Now()),
	}, nil
}

func (o *cliOptions) applyLoanOverrides(cmd *cobra.Command, conf *config.Configuration) error {
	flags := cmd.Flags()
	if flags.Changed("principal") {
		conf.Loan.Principal = o.principal
	}
	if flags.Changed("rate") {
		conf.Loan.AnnualRate = o.annualRate
	}
	if flags.Changed("duration") {
		conf.Loan.DurationMonths = o.duration
	}
	if flags.Changed("emi") {
		conf.Loan.ManualEMI = o.manualEMI
	}
	if flags.Changed("start-month") {
		if o.startMonth < 1 || o.startMonth > 12 {
			return fmt.Errorf("invalid start month %d: must be between 1 and 12", o.startMonth)
		}
		month := o.startMonth - 1
		conf.Loan.StartMonth = &month
	}
	if flags.Changed("start-year") {
		conf.Loan.StartYear = o.startYear
	}
	return nil
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": %q}\n", err.Error())
		os.Exit(1)
	}
}
