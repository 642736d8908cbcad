// Command broker runs the policy-enforcing remote-execution broker: it
// loads configuration and the legacy whitelist, wires the catalog,
// classifier, decision engine, dual-channel SSH transport, executor
// facade, and remediation manager together, then exposes them as an MCP
// tool surface over HTTP alongside a Prometheus /metrics endpoint and a
// background sweep/digest scheduler.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marcus-qen/linux-broker/internal/audit"
	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/config"
	"github.com/marcus-qen/linux-broker/internal/engine"
	"github.com/marcus-qen/linux-broker/internal/executor"
	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/legacy"
	"github.com/marcus-qen/linux-broker/internal/metrics"
	"github.com/marcus-qen/linux-broker/internal/remediation"
	"github.com/marcus-qen/linux-broker/internal/scheduler"
	"github.com/marcus-qen/linux-broker/internal/toolsurface"
	"github.com/marcus-qen/linux-broker/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	rules := legacy.NewStore(cfg.WhitelistPath, logger.Named("legacy"))
	if err := rules.Load(); err != nil {
		logger.Fatal("failed to load command whitelist", zap.Error(err))
	}
	os.Exit(run(cfg, rules, logger))
}

func run(cfg config.Config, rules *legacy.Store, logger *zap.Logger) int {
	auditLog := audit.NewLog(10000)

	reg := catalog.NewRegistry()
	reg.Load()
	cls := classifier.New(reg)

	learnPath := ""
	if cfg.LogDir != "" {
		learnPath = filepath.Join(cfg.LogDir, "command_stats.json")
	}
	learn := learning.New(learnPath, cls, logger.Named("learning"))

	eng := engine.New(rules, learn, logger.Named("engine"))
	xport := transport.New(cfg, auditLog, logger.Named("transport"))
	facade := executor.New(cls, eng, xport, auditLog, logger.Named("executor"))
	rem := remediation.New(xport, auditLog, logger.Named("remediation"))

	stop := make(chan struct{})
	if cfg.WhitelistPath != "" {
		if err := rules.Watch(stop); err != nil {
			logger.Warn("whitelist hot-reload not active", zap.Error(err))
		}
	}
	defer close(stop)

	sched := scheduler.New(eng, rem, learn, logger.Named("scheduler"), scheduler.DefaultConfig())
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	surface := toolsurface.New(facade, eng, rem, rules, learn, reg, cls, logger.Named("toolsurface"))
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: "linux-broker", Version: version}, nil)
	surface.Register(mcpServer)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"version":"%s","commit":"%s"}`+"\n", version, commit)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/mcp", mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
		return mcpServer
	}, nil))

	listenAddr := os.Getenv("LINUX_BROKER_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8443"
	}

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting linux-broker",
		zap.String("addr", listenAddr),
		zap.String("version", version),
		zap.String("ssh_auth_mode", string(xport.AuthMode())),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			xport.CloseAll()
			return 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	xport.CloseAll()
	return 0
}
