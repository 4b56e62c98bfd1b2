// Package gateway is the boundary in front of the platform dispatcher: it
// validates queries, bounds total latency and keeps slot output ordered.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/restweek/internal/availability"
	"github.com/example/restweek/internal/platform"
	"github.com/rs/zerolog"
)

// ErrInvalidInput marks a malformed date or non-positive party size. Not
// retryable without correction.
var ErrInvalidInput = errors.New("invalid input")

// Query is one inbound availability question.
type Query struct {
	PlatformURL string
	Date        string // ISO-8601 calendar date
	PartySize   int
}

type Gateway struct {
	Dispatcher *platform.Dispatcher

	// RequestTimeout bounds the whole query: limiter waits plus upstream
	// calls. Zero means the caller's context is the only bound.
	RequestTimeout time.Duration

	Log zerolog.Logger
}

func New(d *platform.Dispatcher, requestTimeout time.Duration, log zerolog.Logger) *Gateway {
	return &Gateway{Dispatcher: d, RequestTimeout: requestTimeout, Log: log}
}

// CheckAvailability validates the query and delegates to the dispatcher.
// Slots come back ascending by time. Failures keep their category: callers
// can distinguish bad input, unknown platforms, upstream trouble and
// budget exhaustion.
func (g *Gateway) CheckAvailability(ctx context.Context, q Query) (availability.Result, error) {
	date, err := parseQuery(q)
	if err != nil {
		return availability.Result{}, err
	}

	if g.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := g.Dispatcher.FindAvailability(ctx, q.PlatformURL, date, q.PartySize)
	if err != nil {
		return availability.Result{}, err
	}
	res.Sort()

	g.Log.Info().
		Str("url", q.PlatformURL).
		Str("date", q.Date).
		Int("party_size", q.PartySize).
		Int("slots", len(res.Slots)).
		Dur("took", time.Since(start)).
		Msg("availability query")
	return res, nil
}

func parseQuery(q Query) (time.Time, error) {
	if q.PlatformURL == "" {
		return time.Time{}, fmt.Errorf("%w: platform_url is required", ErrInvalidInput)
	}
	if q.Date == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	date, err := time.Parse("2006-01-02", q.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q (want YYYY-MM-DD)", ErrInvalidInput, q.Date)
	}
	if q.PartySize < 1 {
		return time.Time{}, fmt.Errorf("%w: party_size must be a positive integer", ErrInvalidInput)
	}
	return date, nil
}
