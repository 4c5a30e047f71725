package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ahrav/go-thurstone/infrastructure/metrics"
	"github.com/ahrav/go-thurstone/internal/logging"
	"github.com/ahrav/go-thurstone/internal/ports"
)

// Set by the linker at release time.
var version = "dev"

var (
	// logger is replaced in setup once flags and config are resolved.
	logger = zap.NewNop()

	// collector stays nil unless --metrics-addr is set.
	collector ports.MetricsCollector

	metricsServer *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "thurstone",
	Short: "Rank ideas by comparing them two at a time.",
	Long: `thurstone asks a judge which of two ideas is better for every pair of ideas
in a run file, then scores the ideas on an interval scale with Thurstone's
Case V model of comparative judgment.

The judge can be you (rank), an LLM or a simulated oracle (auto). Sessions
can be stored in Redis or SQLite so an interactive ranking can be resumed.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "CLI settings file (default .thurstone.yaml in . or $HOME)")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")
	pf.String("log-format", "console", "log format: console or json")
	pf.StringP("output", "o", outputTable, "result format: table or json")
	pf.String("store", "", "override the session store: memory, redis or sqlite")
	pf.String("store-dsn", "", "override the Redis URL or SQLite path")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(rankCmd, autoCmd, scoreCmd, sessionsCmd)
	bindFlags()
}

// bindFlags exposes the flags that viper also reads from the settings file
// and THURSTONE_* variables.
func bindFlags() {
	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))
	cobra.CheckErr(viper.BindPFlag("api-key", autoCmd.Flags().Lookup("api-key")))
}

// initConfig points viper at the settings file and the environment.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".thurstone")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("THURSTONE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setup merges the settings file and builds the logger and metrics
// endpoint shared by every command.
func setup(cmd *cobra.Command, _ []string) error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	l, err := logging.New(viper.GetString("log-level"), viper.GetString("log-format"))
	if err != nil {
		return err
	}
	logger = l.Named("thurstone")

	if viper.GetBool("no-color") {
		color.NoColor = true
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		if err := serveMetrics(addr); err != nil {
			return err
		}
	}
	logger.Debug("configuration resolved",
		zap.String("command", cmd.Name()),
		zap.String("config_file", viper.ConfigFileUsed()))
	return nil
}

func teardown(*cobra.Command, []string) error {
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	_ = logger.Sync()
	return nil
}

// serveMetrics registers the Prometheus collector in its own registry and
// exposes it over HTTP for the lifetime of the command.
func serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector = metrics.NewPrometheusMetricsWith(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
