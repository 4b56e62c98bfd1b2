package scrape

import (
	"context"
	"time"

	"github.com/example/restweek/internal/catalog"
	"github.com/rs/zerolog"
)

// Refresher periodically re-scrapes the Restaurant Week listing into the
// catalog repo so the served catalog tracks the program's churn.
type Refresher struct {
	Client   *Client
	Repo     *catalog.Repo
	Interval time.Duration
	Log      zerolog.Logger
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.refresh(ctx)
		}
	}
}

// Refresh scrapes and imports once. Used by Run and by the admin endpoint.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	rs, err := r.Client.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.Repo.Import(ctx, rs); err != nil {
		return 0, err
	}
	return len(rs), nil
}

func (r *Refresher) refresh(ctx context.Context) {
	n, err := r.Refresh(ctx)
	if err != nil {
		r.Log.Error().Err(err).Msg("catalog refresh failed")
		return
	}
	r.Log.Info().Int("restaurants", n).Msg("catalog refreshed")
}
