package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	errmonsentry "github.com/facebookincubator/go-belt/tool/experimental/errmon/implementation/sentry"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/coencoder/pkg/config"
	"github.com/xaionaro-go/coencoder/pkg/observability"
	"github.com/xaionaro-go/coencoder/pkg/xpath"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use: os.Args[0],
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			observability.LogLevelFilter.SetLevel(LoggerLevel)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)

			sentryDSN, err := cmd.Flags().GetString("sentry-dsn")
			if err != nil {
				logger.Errorf(ctx, "unable to get the value of the flag 'sentry-dsn': %v", err)
			}
			if sentryDSN != "" {
				logger.Infof(ctx, "setting up Sentry at DSN '%s'", sentryDSN)
				sentryClient, err := sentry.NewClient(sentry.ClientOptions{
					Dsn: sentryDSN,
				})
				if err != nil {
					logger.Fatal(ctx, err)
				}
				sentryErrorMonitor := errmonsentry.New(sentryClient)
				ctx = errmon.CtxWithErrorMonitor(ctx, sentryErrorMonitor)
				l := logger.FromCtx(ctx).WithPreHooks(observability.NewErrorMonitorLoggerHook(ctx, sentryErrorMonitor))
				ctx = logger.CtxWithLogger(ctx, l)
			}

			metricsAddr, err := cmd.Flags().GetString("listen-metrics")
			if err != nil {
				logger.Errorf(ctx, "unable to get the value of the flag 'listen-metrics': %v", err)
			}
			if metricsAddr != "" {
				observability.Go(ctx, func(ctx context.Context) {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					logger.Infof(ctx, "starting to listen for metrics requests at '%s'", metricsAddr)
					logger.Error(ctx, http.ListenAndServe(metricsAddr, mux))
				})
			}

			cmd.SetContext(ctx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			logger.Debug(ctx, "end")
		},
	}

	Encode = &cobra.Command{
		Use:   "encode",
		Short: "encode raw interleaved float32 PCM through the encoder co-process",
		Args:  cobra.ExactArgs(0),
		Run:   encode,
	}

	Capabilities = &cobra.Command{
		Use:   "capabilities",
		Short: "print the sample rates and bitrates the encoder supports",
		Args:  cobra.ExactArgs(0),
		Run:   capabilities,
	}

	GenerateConfig = &cobra.Command{
		Use:  "generate-config",
		Args: cobra.ExactArgs(0),
		Run:  generateConfig,
	}

	Version = &cobra.Command{
		Use:  "version",
		Args: cobra.ExactArgs(0),
		Run:  version,
	}

	LoggerLevel = logger.LevelWarning
)

func init() {
	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")
	Root.PersistentFlags().String("config-path", "~/.coencoder.yaml", "the path to the config file")
	Root.PersistentFlags().String("sentry-dsn", "", "report errors to this Sentry DSN")
	Root.PersistentFlags().String("listen-metrics", "", "serve Prometheus metrics at this address")

	Encode.Flags().String("input", "", "the path to the raw PCM input ('-' for stdin)")
	Encode.Flags().String("output", "", "the path to write the encoded packets to ('-' for stdout)")
	Encode.Flags().String("extra-data", "", "the path to write the codec extra data to")

	Root.AddCommand(Encode)
	Root.AddCommand(Capabilities)
	Root.AddCommand(GenerateConfig)
	Root.AddCommand(Version)
}

func getConfigPath(cmd *cobra.Command) string {
	cfgPathRaw, err := cmd.Flags().GetString("config-path")
	if err != nil {
		logger.Panic(cmd.Context(), err)
	}

	cfgPath, err := xpath.Expand(cfgPathRaw)
	if err != nil {
		logger.Panic(cmd.Context(), err)
	}
	return cfgPath
}

func readConfig(cmd *cobra.Command) config.Config {
	ctx := cmd.Context()
	cfgPath := getConfigPath(cmd)
	cfg := config.Default()
	err := config.ReadFromPath(cfgPath, &cfg)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		logger.Warnf(ctx, "config '%s' does not exist, using the defaults", cfgPath)
	default:
		logger.Panic(ctx, err)
	}
	logger.Debugf(ctx, "cfg == %#+v", cfg)
	return cfg
}

func generateConfig(cmd *cobra.Command, args []string) {
	cfgPath := getConfigPath(cmd)
	if _, err := os.Stat(cfgPath); err == nil {
		logger.Panicf(cmd.Context(), "file '%s' already exists", cfgPath)
	}
	err := config.WriteToPath(cmd.Context(), cfgPath, config.Default())
	if err != nil {
		logger.Panic(cmd.Context(), err)
	}
}

func assertNoError(cmd *cobra.Command, err error) {
	if err != nil {
		logger.Fatal(cmd.Context(), err)
	}
}

func fatalf(cmd *cobra.Command, format string, args ...any) {
	logger.Fatal(cmd.Context(), fmt.Sprintf(format, args...))
}
