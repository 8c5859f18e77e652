package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/karotzctl/internal/state"
	"github.com/five82/karotzctl/karotz"
)

const (
	defaultPollInterval = 10 * time.Second
	maxBackoff          = 30 * time.Second
)

type statusFetcher interface {
	Status(ctx context.Context) (karotz.State, error)
}

// StartPoller launches a background goroutine that refreshes the store and
// hands each resulting snapshot to hooks. Consecutive failures stretch the
// delay between polls up to maxBackoff. It returns immediately.
func StartPoller(ctx context.Context, store *state.Store, client statusFetcher, interval time.Duration, log zerolog.Logger, hooks ...func(state.Snapshot)) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		for {
			_ = refresh(ctx, store, client, log)
			snap := store.Snapshot()
			for _, hook := range hooks {
				hook(snap)
			}

			timer := time.NewTimer(calculateBackoff(snap.ConsecutiveFailures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

func refresh(ctx context.Context, store *state.Store, client statusFetcher, log zerolog.Logger) error {
	st, err := client.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		store.Update(nil, err)
		log.Warn().Err(err).Msg("status poll failed")
		return err
	}
	store.Update(&st, nil)
	log.Debug().Bool("asleep", st.Sleep).Str("version", st.Version).Msg("status polled")
	return nil
}

// calculateBackoff doubles base per consecutive failure, capped at
// maxBackoff (or base, when base is larger).
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	limit := max(maxBackoff, base)
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}
