package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaspardpetit/wspush/modules/common/logx"
	"github.com/gaspardpetit/wspush/server/internal/config"
	"github.com/gaspardpetit/wspush/server/internal/handlers"
	"github.com/gaspardpetit/wspush/server/internal/hub"
	"github.com/gaspardpetit/wspush/server/internal/metrics"
	"github.com/gaspardpetit/wspush/server/internal/server"
	"github.com/gaspardpetit/wspush/server/internal/serverstate"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

// configFileArg finds --config before flags are parsed so the file can be
// loaded underneath env and flags.
func configFileArg(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, "--config=") {
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

func main() {
	var cfg config.ServerConfig
	// Resolve config with precedence: defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv()
	if p := configFileArg(os.Args[1:]); p != "" {
		cfg.ConfigFile = p
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	cfg.ApplyEnv()

	fs := flag.CommandLine
	showVersion := fs.Bool("version", false, "print version and exit")
	cfg.BindFlagsFromCurrent(fs)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "wspush version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		fs.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("wspush version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	cfg.SetDefaults()

	logx.Configure(cfg.LogLevel, cfg.LogFormat)
	metrics.SetServerBuildInfo(version, buildSHA, buildDate)

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := serverstate.NewRedisStore(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("connect redis")
		}
		defer rs.Close()
		serverstate.UseStore(rs)
		logx.Log.Info().Str("addr", cfg.RedisAddr).Msg("using redis state store")
	}

	h := hub.New(hub.Config{
		SendQueue:      cfg.SendQueue,
		WriteTimeout:   cfg.WriteTimeout,
		FileChunkSize:  cfg.FileChunkSize,
		PushRate:       cfg.PushRate,
		PushBurst:      cfg.PushBurst,
		ClientKey:      cfg.ClientKey,
		OriginPatterns: originPatterns(cfg.AllowedOrigins),
	}, handlers.Default(cfg.FileRoot), serverstate.IsDraining)

	preg := prometheus.NewRegistry()
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.New(cfg, h, preg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != srv.Addr {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: server.MetricsHandler(preg), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logx.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	serverstate.Reset(serverstate.StatusReady)
	go func() {
		logx.Log.Info().Str("addr", srv.Addr).Str("version", version).Str("file_root", cfg.FileRoot).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logx.Log.Info().Int("connections", h.Count()).Msg("draining")
	serverstate.StartDrain()

	drainCtx := context.Background()
	cancel := func() {}
	if cfg.DrainTimeout >= 0 {
		drainCtx, cancel = context.WithTimeout(drainCtx, cfg.DrainTimeout)
	}
	if err := h.Wait(drainCtx); err != nil {
		logx.Log.Warn().Int("connections", h.Count()).Msg("drain timeout, closing connections")
	}
	cancel()

	h.Close()
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	_ = h.Wait(closeCtx)
	// hijacked websocket connections are not tracked by Shutdown
	_ = srv.Shutdown(closeCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(closeCtx)
	}
	logx.Log.Info().Msg("stopped")
}

// originPatterns turns CORS origins into host patterns for the websocket
// origin check.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}
