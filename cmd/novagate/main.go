package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ainova/novagate/internal/config"
	"github.com/ainova/novagate/internal/inflight"
	"github.com/ainova/novagate/internal/logx"
	"github.com/ainova/novagate/internal/metrics"
	"github.com/ainova/novagate/internal/modes"
	"github.com/ainova/novagate/internal/relay"
	"github.com/ainova/novagate/internal/secret"
	"github.com/ainova/novagate/internal/server"
	"github.com/ainova/novagate/internal/serverstate"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("load config")
	}
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "novagate version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	cfg.BindFlagsFromCurrent(flag.CommandLine)
	flag.Parse()
	if *showVersion {
		fmt.Printf("novagate version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	cfg.Finalize()

	logx.Configure(cfg.LogLevel)
	metrics.SetServerBuildInfo(version, buildSHA, buildDate)

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := serverstate.NewRedisStore(ctx, cfg.RedisAddr, instanceID(cfg))
		cancel()
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("connect redis")
		}
		defer func() { _ = rs.Close() }()
		serverstate.UseStore(rs)
		logx.Log.Info().Str("addr", secret.MaskURL(cfg.RedisAddr)).Str("key", rs.Key()).Msg("using redis state store")
	}

	reg, err := modes.Default(cfg.UpstreamHost, cfg.OllamaURL, cfg.ModeBases())
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("build mode table")
	}
	for _, m := range reg.Modes() {
		t, _ := reg.Lookup(m)
		logx.Log.Debug().Str("mode", m).Str("upstream", t.URL()).Str("framing", t.Framing.String()).Msg("mode registered")
	}

	relays := &inflight.Counter{}
	preg := prometheus.NewRegistry()
	handler := server.New(cfg, server.Deps{
		Modes:   reg,
		Relayer: relay.NewRelayer(cfg.IdleTimeout),
		Relays:  relays,
		Metrics: preg,
		Version: version,
	})
	// No WriteTimeout: relayed streams may run for minutes.
	srv := &http.Server{Addr: cfg.ListenAddr(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	var metricsSrv *http.Server
	if !cfg.SharesMetricsPort() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", server.MetricsHandler(preg))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if serverstate.IsDraining() || cfg.DrainTimeout == 0 {
				logx.Log.Warn().Msg("termination requested")
				cancel()
				return
			}
			serverstate.StartDrain()
			logx.Log.Info().Int64("inflight", relays.Load()).Msg("drain requested")
			waitCtx := ctx
			var stop context.CancelFunc
			if cfg.DrainTimeout > 0 {
				logx.Log.Info().Dur("timeout", cfg.DrainTimeout).Msg("draining; send SIGTERM again to terminate immediately")
				waitCtx, stop = context.WithTimeout(ctx, cfg.DrainTimeout)
			} else {
				logx.Log.Info().Msg("draining; send SIGTERM again to terminate immediately")
			}
			go func(stop context.CancelFunc, waitCtx context.Context) {
				if stop != nil {
					defer stop()
				}
				if relays.WaitForZero(waitCtx) {
					logx.Log.Info().Msg("drain complete; terminating")
					cancel()
					return
				}
				if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
					logx.Log.Warn().Int64("inflight", relays.Load()).Msg("drain timeout exceeded; terminating")
					cancel()
				}
			}(stop, waitCtx)
		}
	}()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Log.Error().Err(err).Msg("server shutdown")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logx.Log.Error().Err(err).Msg("metrics server shutdown")
			}
		}
	}()

	if metricsSrv != nil {
		go func() {
			logx.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}
	if cfg.APIKey != "" {
		logx.Log.Info().Str("key", secret.Mask(cfg.APIKey)).Msg("API key auth enabled")
	}
	serverstate.SetState(serverstate.StatusReady)
	logx.Log.Info().Str("addr", cfg.ListenAddr()).Str("version", version).Int("modes", len(reg.Modes())).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Log.Fatal().Err(err).Msg("server error")
	}
	<-stopped
}

// loadConfig resolves settings with precedence defaults < file < env < flags.
// Flags are bound afterwards by the caller.
func loadConfig(args []string) (config.ServerConfig, error) {
	var cfg config.ServerConfig
	cfg.SetDefaults()
	cfg.ApplyEnv()
	if v, ok := config.ArgValue(args, "env-file"); ok {
		cfg.EnvFile = v
	}
	if err := config.LoadDotEnv(cfg.EnvFile); err != nil {
		return cfg, fmt.Errorf("load %s: %w", cfg.EnvFile, err)
	}
	cfg.ApplyEnv()
	explicit := os.Getenv("CONFIG_FILE") != ""
	if v, ok := config.ArgValue(args, "config"); ok {
		cfg.ConfigFile = v
		explicit = true
	}
	if err := cfg.LoadFile(cfg.ConfigFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// instanceID names this replica in the shared state store.
func instanceID(cfg config.ServerConfig) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}
