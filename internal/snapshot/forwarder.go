package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/karotzctl/karotz"
)

// Device is the part of karotz.Client the forwarder needs.
type Device interface {
	Snapshot(ctx context.Context, silent bool) (*karotz.Response, error)
	FetchSnapshot(ctx context.Context, filename string) ([]byte, string, error)
}

// Publisher delivers image bytes to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(topic string, payload []byte) error

func (f PublisherFunc) Publish(topic string, payload []byte) error {
	return f(topic, payload)
}

// Options configure a Forwarder.
type Options struct {
	Topic    string
	Interval time.Duration // zero captures only on Trigger
	Silent   bool
	Stamp    bool
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Forwarder takes pictures with the rabbit's camera and publishes them.
type Forwarder struct {
	device  Device
	pub     Publisher
	opts    Options
	log     zerolog.Logger
	trigger chan struct{}
}

// New builds a Forwarder. Call Run to start it.
func New(device Device, pub Publisher, opts Options) *Forwarder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Forwarder{
		device:  device,
		pub:     pub,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "snapshot").Logger(),
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a capture from the Run loop. Requests made while one is
// already pending are merged.
func (f *Forwarder) Trigger() {
	select {
	case f.trigger <- struct{}{}:
	default:
	}
}

// Run captures on every interval tick and on Trigger until ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	var tick <-chan time.Time
	if f.opts.Interval > 0 {
		ticker := time.NewTicker(f.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	f.log.Info().Str("topic", f.opts.Topic).Dur("interval", f.opts.Interval).Msg("snapshot forwarder started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-f.trigger:
		}
		if _, err := f.Capture(ctx); err != nil {
			f.log.Warn().Err(err).Msg("snapshot capture failed")
		}
	}
}

// Capture takes one snapshot, downloads it, optionally stamps the capture
// time on it and publishes the JPEG.
func (f *Forwarder) Capture(ctx context.Context) (karotz.SnapshotInfo, error) {
	taken := f.opts.Now()
	resp, err := f.device.Snapshot(ctx, f.opts.Silent)
	if err != nil {
		return karotz.SnapshotInfo{}, fmt.Errorf("take snapshot: %w", err)
	}
	info, err := resp.Snapshot()
	if err != nil {
		return karotz.SnapshotInfo{}, fmt.Errorf("take snapshot: %w", err)
	}

	img, contentType, err := f.device.FetchSnapshot(ctx, info.Filename)
	if err != nil {
		return info, fmt.Errorf("fetch snapshot %s: %w", info.Filename, err)
	}
	if contentType != "" && contentType != "image/jpeg" {
		f.log.Warn().Str("filename", info.Filename).Str("content_type", contentType).Msg("unexpected snapshot mimetype")
	}

	if f.opts.Stamp {
		stamped, err := Stamp(img, StampLabel(taken))
		if err != nil {
			f.log.Warn().Err(err).Str("filename", info.Filename).Msg("publishing snapshot unstamped")
		} else {
			img = stamped
		}
	}

	if err := f.pub.Publish(f.opts.Topic, img); err != nil {
		return info, fmt.Errorf("publish snapshot: %w", err)
	}
	f.log.Debug().Str("filename", info.Filename).Int("bytes", len(img)).Msg("snapshot published")
	return info, nil
}
