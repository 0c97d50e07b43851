package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/matcher"
	"github.com/praetorian-inc/vectorscan-go/pkg/scanner"
	"github.com/praetorian-inc/vectorscan-go/pkg/serve"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveRulesPath    string
	serveCachePath    string
	serveMaxMatches   int
	serveContextLines int
	serveMetricsAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as an NDJSON scanning server",
	Long: `Run vectorscan as a long-lived server that accepts scan and stream
requests on stdin and writes responses to stdout as NDJSON.

The process compiles rules once at startup and processes requests until
stdin closes, a close request arrives, or SIGTERM is received.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveRulesPath, "rules", "", "Path to custom rules file, pattern list or directory")
	serveCmd.Flags().StringVar(&serveCachePath, "cache", "", "Compiled database cache (SQLite file)")
	serveCmd.Flags().IntVar(&serveMaxMatches, "max-matches", 0, "Maximum matches reported per scan (0 = unlimited)")
	serveCmd.Flags().IntVar(&serveContextLines, "context-lines", 2, "Lines of context before/after matches")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(serveRulesPath, "", "")
	if err != nil {
		return err
	}

	compiler, closeCompiler, err := openCompiler(serveCachePath)
	if err != nil {
		return err
	}
	defer closeCompiler()

	var metrics *matcher.Metrics
	var metricsServer *http.Server
	if serveMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = matcher.NewMetrics(reg)
		metricsServer = startMetricsServer(serveMetricsAddr, reg)
	}

	core, err := scanner.NewCore(scanner.Config{
		Rules:             rules,
		ContextLines:      serveContextLines,
		MaxMatchesPerBlob: serveMaxMatches,
		Compiler:          compiler,
		Logger:            logger,
		Metrics:           metrics,
	})
	if err != nil {
		return err
	}
	defer core.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout(), serve.WithLogger(logger))
	err = srv.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := metricsServer.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("metrics server shutdown", zap.Error(serr))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func startMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
