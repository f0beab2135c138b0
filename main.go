package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/mase1981/uc-intg-jellyfin/internal/buildinfo"
	"github.com/mase1981/uc-intg-jellyfin/internal/config"
	"github.com/mase1981/uc-intg-jellyfin/internal/diagnostics"
	"github.com/mase1981/uc-intg-jellyfin/internal/dispatch"
	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
	"github.com/mase1981/uc-intg-jellyfin/internal/health"
	"github.com/mase1981/uc-intg-jellyfin/internal/host"
	"github.com/mase1981/uc-intg-jellyfin/internal/jellyfin"
	"github.com/mase1981/uc-intg-jellyfin/internal/lifecycle"
	"github.com/mase1981/uc-intg-jellyfin/internal/metrics"
	"github.com/mase1981/uc-intg-jellyfin/internal/reconcile"
)

type selfTestOutput struct {
	Bridge struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"bridge"`
	Wiring diagnostics.WiringReport `json:"wiring"`
}

func main() {
	selfTest := flag.Bool("self-test", false, "run configuration wiring diagnostics then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *selfTest {
		out := selfTestOutput{Wiring: diagnostics.DescribeWiring(cfg)}
		out.Bridge.Name = "uc-intg-jellyfin"
		out.Bridge.Version = buildinfo.Version

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	runCtx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()

	logLevel := parseLogLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Info("bridge_start",
		slog.String("version", buildinfo.Version),
		slog.String("server_url", cfg.Server.URL),
		slog.String("log_level", logLevel.String()),
	)

	client := jellyfin.NewClient(jellyfin.Options{
		URL:           cfg.Server.URL,
		Username:      cfg.Server.Username,
		Password:      cfg.Server.Password,
		TwoFactorCode: cfg.Server.TwoFactorCode,
		MinVersion:    cfg.Server.MinVersion,
		DeviceID:      cfg.Server.DeviceID,
		ActiveWithin:  cfg.Poll.ActiveWithinSeconds,
		Logger:        logger,
	})

	authCtx, cancelAuth := context.WithTimeout(runCtx, cfg.Poll.RequestTimeoutDuration())
	_, authErr := client.Authenticate(authCtx)
	cancelAuth()
	if authErr != nil {
		var ae *domain.AuthError
		if errors.As(authErr, &ae) && ae.Reason != domain.AuthServerUnreachable {
			// Bad credentials or an unsupported server will not fix
			// themselves; surface it to the operator and stop.
			logger.Error("authentication_failed", slog.String("reason", string(ae.Reason)), slog.String("error", ae.Message))
			os.Exit(1)
		}
		logger.Warn("initial_authentication_deferred", slog.String("error", authErr.Error()))
	}

	monitor := health.NewMonitor(client, logger,
		health.WithInterval(cfg.Health.IntervalDuration()),
		health.WithFailureThreshold(cfg.Health.FailureThreshold),
		health.WithBackoffBounds(cfg.Health.BackoffBaseDuration(), cfg.Health.BackoffCapDuration()),
	)

	entityHost := host.NewLogHost(logger)
	reconciler := reconcile.NewReconciler(client, entityHost, monitor, logger,
		reconcile.WithPollInterval(cfg.Poll.IntervalDuration()),
		reconcile.WithGraceWindow(cfg.Poll.GraceWindowDuration()),
		reconcile.WithCallTimeout(cfg.Poll.RequestTimeoutDuration()),
	)

	dispatcher := dispatch.NewDispatcher(reconciler, client, logger)
	commands := host.NewCommandReader(os.Stdin, dispatcher, logger)

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		monitor.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		reconciler.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		commands.Run(runCtx)
	}()

	if cfg.Push.Enabled {
		listener := jellyfin.NewSocketListener(client, reconciler.Wake, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Run(runCtx)
		}()
	}

	<-runCtx.Done()
	logger.Info("bridge_stopping", slog.String("reason", "signal"))

	shutdownDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(shutdownDone)
	}()
	select {
	case <-shutdownDone:
	case <-time.After(5 * time.Second):
		logger.Warn("bridge_shutdown_timeout")
	}
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid log level %q; defaulting to info\n", raw)
		return slog.LevelInfo
	}
}
