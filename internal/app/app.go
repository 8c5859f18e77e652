package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/five82/karotzctl/internal/bridge"
	"github.com/five82/karotzctl/internal/config"
	"github.com/five82/karotzctl/internal/logging"
	"github.com/five82/karotzctl/internal/metrics"
	"github.com/five82/karotzctl/internal/snapshot"
	"github.com/five82/karotzctl/internal/state"
	"github.com/five82/karotzctl/karotz"
)

const shutdownTimeout = 5 * time.Second

// Options configure the karotzd daemon.
type Options struct {
	ConfigPath string
	PollEvery  int       // seconds; zero uses the configured interval
	LogOutput  io.Writer // nil writes to stderr
}

// Run boots the daemon and blocks until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, out)

	recorder := metrics.New()
	client, err := karotz.NewClient(cfg.Address,
		karotz.WithLogger(log),
		karotz.WithObserver(recorder),
		karotz.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		return fmt.Errorf("init karotz client: %w", err)
	}

	if cfg.MetricsListen != "" {
		_, stop, err := serveMetrics(cfg.MetricsListen, recorder, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	hooks := []func(state.Snapshot){
		func(s state.Snapshot) { recorder.ObservePoll(s.LastError == nil) },
	}

	if cfg.MQTT.Broker != "" {
		br, fwd := buildBridge(cfg, client, recorder, log)
		if err := br.Connect(ctx, MQTT.NewClient(br.ClientOptions(bridge.Settings{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}))); err != nil {
			return err
		}
		defer br.Close()
		hooks = append(hooks, br.PublishState)
		if fwd != nil {
			go fwd.Run(ctx)
		}
	} else if cfg.Snapshot.Enabled {
		log.Warn().Msg("snapshot forwarding needs mqtt.broker; disabled")
	}

	store := &state.Store{}
	StartPoller(ctx, store, client, cfg.PollInterval, log, hooks...)

	log.Info().
		Str("device", client.APIURL()).
		Dur("poll_interval", cfg.PollInterval).
		Bool("mqtt", cfg.MQTT.Broker != "").
		Msg("karotzd started")

	<-ctx.Done()
	log.Info().Msg("karotzd stopping")
	return nil
}

// buildBridge wires the MQTT bridge and, when enabled, the snapshot
// forwarder publishing through it.
func buildBridge(cfg config.Config, client *karotz.Client, recorder *metrics.Recorder, log zerolog.Logger) (*bridge.Bridge, *snapshot.Forwarder) {
	var br *bridge.Bridge
	var fwd *snapshot.Forwarder
	opts := bridge.Options{
		Prefix:          cfg.MQTT.TopicPrefix,
		Discovery:       cfg.MQTT.Discovery,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		RateLimit:       cfg.MQTT.RateLimit,
		RateBurst:       cfg.MQTT.RateBurst,
		Logger:          log,
		Observer:        recorder,
	}
	if cfg.Snapshot.Enabled {
		fwd = snapshot.New(client, snapshot.PublisherFunc(func(topic string, payload []byte) error {
			return br.Publish(topic, payload)
		}), snapshot.Options{
			Topic:    cfg.SnapshotTopic(),
			Interval: cfg.Snapshot.Interval,
			Silent:   cfg.Snapshot.Silent,
			Stamp:    cfg.Snapshot.Stamp,
			Logger:   log,
		})
		opts.Capturer = fwd
	}
	br = bridge.New(client, opts)
	return br, fwd
}

func serveMetrics(addr string, recorder *metrics.Recorder, log zerolog.Logger) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return ln.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
