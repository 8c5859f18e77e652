package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/five82/karotzctl/internal/state"
	"github.com/five82/karotzctl/karotz"
)

const (
	availabilityTopic = "availability"
	stateTopic        = "state"
	commandPrefix     = "cmd/"
	resultPrefix      = "result/"

	payloadOnline  = "online"
	payloadOffline = "offline"

	captureCommand = "capture"

	publishTimeout = 5 * time.Second
)

// CommandObserver receives one notification per handled command.
type CommandObserver interface {
	ObserveCommand(command, result string)
}

// Capturer takes a snapshot on demand.
type Capturer interface {
	Trigger()
}

// Options configure a Bridge.
type Options struct {
	Prefix          string
	Discovery       bool
	DiscoveryPrefix string
	RateLimit       float64 // commands per second; zero disables throttling
	RateBurst       int
	Logger          zerolog.Logger
	Observer        CommandObserver
	Capturer        Capturer
}

// Settings describe the broker connection.
type Settings struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Bridge exposes one rabbit on MQTT.
type Bridge struct {
	device   *karotz.Client
	prefix   string
	opts     Options
	log      zerolog.Logger
	limiter  *rate.Limiter
	capturer Capturer

	mu        sync.RWMutex
	client    MQTT.Client
	ctx       context.Context
	announced string // firmware version carried by the last discovery burst
}

// New builds a Bridge for device. It does nothing until Connect.
func New(device *karotz.Client, opts Options) *Bridge {
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix == "" {
		prefix = "karotz"
	}
	if opts.DiscoveryPrefix == "" {
		opts.DiscoveryPrefix = "homeassistant"
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Bridge{
		device:   device,
		prefix:   prefix,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "bridge").Logger(),
		limiter:  rate.NewLimiter(limit, burst),
		capturer: opts.Capturer,
		ctx:      context.Background(),
	}
}

// ClientOptions returns paho options for s with the bridge's last will and
// connect hook installed.
func (b *Bridge) ClientOptions(s Settings) *MQTT.ClientOptions {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(s.Broker)
	opts.SetClientID(s.ClientID)
	opts.SetUsername(s.Username)
	opts.SetPassword(s.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(b.topic(availabilityTopic), payloadOffline, 1, true)
	opts.OnConnect = b.onConnect
	opts.OnConnectionLost = func(_ MQTT.Client, err error) {
		b.log.Warn().Err(err).Msg("mqtt connection lost")
	}
	opts.SetDefaultPublishHandler(func(_ MQTT.Client, msg MQTT.Message) {
		b.log.Warn().Str("topic", msg.Topic()).Msg("received message but no handler")
	})
	return opts
}

// Connect attaches client and connects it. Commands run with ctx, so
// cancelling it aborts in-flight device calls.
func (b *Bridge) Connect(ctx context.Context, client MQTT.Client) error {
	b.mu.Lock()
	b.client = client
	b.ctx = ctx
	b.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// With connect retry enabled paho keeps trying in the background and
		// runs onConnect once it gets through.
		b.log.Warn().Msg("mqtt broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	return nil
}

// Close announces the bridge offline and disconnects.
func (b *Bridge) Close() {
	client := b.mqttClient()
	if client == nil || !client.IsConnected() {
		return
	}
	token := client.Publish(b.topic(availabilityTopic), 1, true, payloadOffline)
	token.WaitTimeout(publishTimeout)
	client.Disconnect(250)
}

func (b *Bridge) onConnect(client MQTT.Client) {
	b.log.Info().Str("prefix", b.prefix).Strs("commands", CommandNames()).Msg("mqtt connected")

	if token := client.Subscribe(b.topic(commandPrefix+"+"), 1, b.handleMessage); token.Wait() && token.Error() != nil {
		b.log.Error().Err(token.Error()).Msg("subscribe to commands failed")
	}
	client.Publish(b.topic(availabilityTopic), 1, true, payloadOnline).WaitTimeout(publishTimeout)

	if b.opts.Discovery {
		version := b.device.State().Version
		b.mu.Lock()
		b.announced = version
		b.mu.Unlock()
		b.announce(client, version)
	}
}

// announce publishes the retained discovery configs.
func (b *Bridge) announce(client MQTT.Client, version string) {
	for _, ad := range b.advertisements(version) {
		topic := ad.ConfigTopic(b.opts.DiscoveryPrefix, b.nodeID())
		if token := client.Publish(topic, 0, true, ad.ToJSON()); token.Wait() && token.Error() != nil {
			b.log.Error().Err(token.Error()).Str("topic", topic).Msg("publish discovery failed")
		}
	}
}

// versionChanged records version as announced and reports whether it
// differs from the previous announcement.
func (b *Bridge) versionChanged(version string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if version == b.announced {
		return false
	}
	b.announced = version
	return true
}

// Publish sends payload on topic without retention. It satisfies the
// snapshot forwarder's Publisher.
func (b *Bridge) Publish(topic string, payload []byte) error {
	return b.publish(topic, false, payload)
}

// PublishState publishes the poller's view of the rabbit, retained. When
// discovery is on and a poll reveals a firmware version that was not
// announced yet, the discovery configs are republished with it.
func (b *Bridge) PublishState(snap state.Snapshot) {
	payload := newStatePayload(snap.State, !snap.IsOffline(), snap.LastUpdated, snap.LastError)
	if err := b.publishJSON(b.topic(stateTopic), true, payload); err != nil {
		b.log.Warn().Err(err).Msg("publish state failed")
	}
	if !b.opts.Discovery || !snap.HasState || swVersion(snap.State.Version) == "" {
		return
	}
	client := b.mqttClient()
	if client == nil || !b.versionChanged(snap.State.Version) {
		return
	}
	b.log.Debug().Str("version", snap.State.Version).Msg("republishing discovery")
	b.announce(client, snap.State.Version)
}

func (b *Bridge) handleMessage(_ MQTT.Client, msg MQTT.Message) {
	name := strings.TrimPrefix(msg.Topic(), b.topic(commandPrefix))
	log := b.log.With().Str("command", name).Logger()

	if !b.limiter.Allow() {
		log.Warn().Msg("command throttled")
		b.finish(name, "throttled", commandResult{Command: name, Error: "rate limit exceeded"})
		return
	}

	if name == captureCommand && b.capturer != nil {
		b.capturer.Trigger()
		b.finish(name, "ok", commandResult{Command: name, OK: true})
		return
	}

	cmd, ok := commands[name]
	if !ok {
		log.Warn().Msg("unknown command")
		b.finish(name, "error", commandResult{Command: name, Error: "unknown command"})
		return
	}
	args, err := parseArgs(cmd, msg.Payload())
	if err != nil {
		log.Warn().Err(err).Msg("bad command payload")
		b.finish(name, "error", commandResult{Command: name, Error: err.Error()})
		return
	}

	log.Debug().Msg("dispatching command")
	karotz.Go(b.context(), b.device,
		func(ctx context.Context) (any, error) {
			return cmd.run(ctx, b.device, args)
		},
		func(reply any) {
			b.finish(name, "ok", commandResult{Command: name, OK: true, Reply: reply})
			if cmd.refreshState {
				b.publishDeviceState()
			}
		},
		func(err error) {
			log.Warn().Err(err).Msg("command failed")
			res := commandResult{Command: name, Error: karotz.Message(err)}
			var kerr *karotz.Error
			if errors.As(err, &kerr) {
				res.Kind = kerr.Kind.String()
			} else if res.Error == "" {
				res.Error = err.Error()
			}
			b.finish(name, "error", res)
			if cmd.refreshState {
				b.publishDeviceState()
			}
		})
}

// publishDeviceState publishes the client's cached state after a command
// changed it.
func (b *Bridge) publishDeviceState() {
	payload := newStatePayload(b.device.State(), true, time.Now(), nil)
	if err := b.publishJSON(b.topic(stateTopic), true, payload); err != nil {
		b.log.Warn().Err(err).Msg("publish state failed")
	}
}

func (b *Bridge) finish(name, outcome string, res commandResult) {
	if b.opts.Observer != nil {
		b.opts.Observer.ObserveCommand(name, outcome)
	}
	if err := b.publishJSON(b.topic(resultPrefix+name), false, res); err != nil {
		b.log.Warn().Err(err).Str("command", name).Msg("publish result failed")
	}
}

func (b *Bridge) publishJSON(topic string, retained bool, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return b.publish(topic, retained, data)
}

func (b *Bridge) publish(topic string, retained bool, payload []byte) error {
	client := b.mqttClient()
	if client == nil {
		return fmt.Errorf("publish %s: not connected", topic)
	}
	token := client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bridge) topic(suffix string) string {
	return b.prefix + "/" + suffix
}

func (b *Bridge) mqttClient() MQTT.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

func (b *Bridge) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

type commandResult struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Reply   any    `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type statePayload struct {
	Online      bool         `json:"online"`
	Asleep      bool         `json:"asleep"`
	Version     string       `json:"version"`
	FreeSpace   string       `json:"free_space"`
	LedColor    string       `json:"led_color,omitempty"`
	LedPulse    bool         `json:"led_pulse"`
	EarsEnabled bool         `json:"ears_enabled"`
	Updated     time.Time    `json:"updated"`
	Error       string       `json:"error,omitempty"`
	Raw         karotz.State `json:"raw"`
}

func newStatePayload(st karotz.State, online bool, updated time.Time, err error) statePayload {
	p := statePayload{
		Online:      online,
		Asleep:      st.Sleep,
		Version:     st.Version,
		FreeSpace:   st.FreeSpace,
		LedColor:    st.LedColor,
		LedPulse:    st.LedPulse,
		EarsEnabled: st.EarsEnabled,
		Updated:     updated,
		Raw:         st,
	}
	if err != nil {
		p.Error = karotz.Message(err)
	}
	return p
}
