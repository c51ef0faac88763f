// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xmidt-org/semaphore/conlimiter"
	"github.com/xmidt-org/semaphore/loadtest"
	"github.com/xmidt-org/semaphore/semaphore"
	"github.com/xmidt-org/semaphore/xmetrics"
	"github.com/xmidt-org/semaphore/xviper"
	"go.uber.org/zap"
)

var errOverCapacity = errors.New("peak concurrency exceeded the semaphore capacity")

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := xviper.New(
				xviper.StdOptions(applicationName, cmd.Flags()),
				xviper.BindConfigFile(cmd.Flags(), "file"),
			)

			if err == nil {
				err = xviper.ReadInConfig(v)
			}

			if err != nil {
				return fmt.Errorf("unable to configure %s: %w", applicationName, err)
			}

			return runLoadTest(cmd.Context(), v, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringP("file", "f", "", "the fully-qualified configuration file")
	fs.Int("capacity", 2, "the semaphore capacity")
	fs.Int("tasks", 5, "the number of concurrent tasks")
	fs.Duration("hold", 10*time.Millisecond, "how long each task holds its slot")
	fs.Duration("timeout", 0, "how long a queued task waits for a slot, 0 to wait forever")
	fs.Bool("overflow", false, "let timed out tasks proceed without a slot")
	fs.String("mode", loadtest.ModeAcquire, "one of acquire, use, or mutex")
	fs.Duration("deadline", 0, "the limit on the whole run, 0 for none")
	fs.String("log-level", "info", "the log level")
	fs.String("metrics-address", "", "if set, the address on which /metrics is served")
	fs.Duration("metrics-linger", 0, "how long to keep serving /metrics after the run")
	fs.Int("metrics-max-connections", 10, "the maximum number of concurrent connections to the metrics server")

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// serveMetrics starts an HTTP server for the registry.  The returned function shuts it down.
func serveMetrics(address string, maxConnections int, registry xmetrics.Registry, logger *zap.Logger) (func(context.Context) error, error) {
	limiter, err := conlimiter.New(maxConnections)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics connection limit: %w", err)
	}

	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	limiter.Limit(server)

	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("address", l.Addr().String()))
	return server.Shutdown, nil
}

func runLoadTest(ctx context.Context, v *viper.Viper, out io.Writer) error {
	logger, err := newLogger(v.GetString("log-level"))
	if err != nil {
		return err
	}

	defer logger.Sync()

	var o loadtest.Options
	if err := v.Unmarshal(&o); err != nil {
		return fmt.Errorf("unable to read load test options: %w", err)
	}

	registry, err := xmetrics.NewRegistry(&xmetrics.Options{Logger: logger}, semaphore.Metrics)
	if err != nil {
		return err
	}

	if address := v.GetString("metrics-address"); len(address) > 0 {
		shutdown, err := serveMetrics(address, v.GetInt("metrics-max-connections"), registry, logger)
		if err != nil {
			return err
		}

		defer func() {
			if linger := v.GetDuration("metrics-linger"); linger > 0 {
				time.Sleep(linger)
			}

			shutdown(context.Background())
		}()
	}

	runner, err := loadtest.New(o, loadtest.WithLogger(logger), loadtest.WithProvider(registry))
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	switch {
	case errors.Is(err, loadtest.ErrDeadline):
		printReport(out, report)
		return err

	case err != nil:
		return err
	}

	printReport(out, report)

	if report.Exceeded() && !o.Overflow {
		return errOverCapacity
	}

	return nil
}

func printReport(out io.Writer, r loadtest.Report) {
	fmt.Fprintf(out, "mode=%s capacity=%d tasks=%d\n", r.Mode, r.Capacity, r.Tasks)
	fmt.Fprintf(out, "completed=%d timedOut=%d failed=%d\n", r.Completed, r.TimedOut, r.Failed)

	peak := color.New(color.FgGreen)
	if r.Exceeded() {
		peak = color.New(color.FgYellow, color.Bold)
	}

	peak.Fprintf(out, "peak=%d", r.Peak)
	fmt.Fprintf(out, " finalCount=%d elapsed=%s\n", r.FinalCount, r.Elapsed)
}
