package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/example/restweek/internal/availability"
	"github.com/example/restweek/internal/ratelimit"
	"github.com/rs/zerolog"
)

// Dispatcher classifies a restaurant reference, charges the shared budget
// and drives the matching adapter. Budget policy: one token per upstream
// HTTP call, so a URL query costs two tokens (resolve + fetch).
type Dispatcher struct {
	reg     *Registry
	limiter *ratelimit.Limiter

	// WaitTimeout bounds each token acquisition separately from the
	// caller's overall deadline.
	WaitTimeout time.Duration

	Log zerolog.Logger
}

func NewDispatcher(reg *Registry, limiter *ratelimit.Limiter, waitTimeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, limiter: limiter, WaitTimeout: waitTimeout, Log: log}
}

// FindAvailability answers "which slots are open at the restaurant behind
// rawURL on date for partySize". Fails with ErrUnsupportedPlatform for
// unknown hosts and ErrRateLimited when the budget cannot be granted in
// time.
func (d *Dispatcher) FindAvailability(ctx context.Context, rawURL string, date time.Time, partySize int) (availability.Result, error) {
	adapter, err := d.reg.Classify(rawURL)
	if err != nil {
		return availability.Result{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, rawURL)
	}

	log := d.Log.With().Str("platform", adapter.Name()).Logger()

	if err := d.acquire(ctx); err != nil {
		return availability.Result{}, err
	}
	loc, err := adapter.Resolve(ctx, rawURL)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("resolve failed")
		return availability.Result{}, err
	}

	if err := d.acquire(ctx); err != nil {
		return availability.Result{}, err
	}
	res, err := adapter.Fetch(ctx, loc, date, partySize)
	if err != nil {
		log.Warn().Err(err).Str("venue", loc.ID).Msg("fetch failed")
		return availability.Result{}, err
	}

	log.Debug().Str("venue", loc.ID).Int("slots", len(res.Slots)).Msg("availability fetched")
	return res, nil
}

func (d *Dispatcher) acquire(ctx context.Context) error {
	if d.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.WaitTimeout)
		defer cancel()
	}
	if err := d.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}
