package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/restweek/internal/platform"
	"github.com/example/restweek/internal/platform/resy"
	"github.com/example/restweek/internal/ratelimit"
)

// newResyStack wires a gateway whose resy adapter talks to a stub API.
func newResyStack(t *testing.T, handler http.Handler, lim *ratelimit.Limiter) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := platform.NewRegistry()
	reg.Register(resy.New(resy.Config{APIBase: srv.URL}), "resy.com")
	d := platform.NewDispatcher(reg, lim, time.Second, zerolog.Nop())
	return New(d, 5*time.Second, zerolog.Nop())
}

func stubResyAPI() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/3/venue", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":{"resy":3121}}`))
	})
	mux.HandleFunc("/4/find", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"venues":[{"slots":[
			{"date":{"start":"2025-08-22 17:00:00"},"config":{"type":"Standard"}},
			{"date":{"start":"2025-08-22 19:30:00"},"config":{"type":"Patio"}}
		]}]}}`))
	})
	return mux
}

func TestEndToEndResyQuery(t *testing.T) {
	lim := ratelimit.New(1, 10)
	g := newResyStack(t, stubResyAPI(), lim)

	res, err := g.CheckAvailability(context.Background(), Query{
		PlatformURL: "https://resy.com/cities/new-york-ny/venues/example",
		Date:        "2025-08-22",
		PartySize:   2,
	})
	require.NoError(t, err)

	require.Len(t, res.Slots, 2)
	assert.Equal(t, time.Date(2025, 8, 22, 17, 0, 0, 0, time.UTC), res.Slots[0].Time)
	assert.Equal(t, "Standard", res.Slots[0].SeatingType)
	assert.Equal(t, time.Date(2025, 8, 22, 19, 30, 0, 0, time.UTC), res.Slots[1].Time)
	assert.Equal(t, "Patio", res.Slots[1].SeatingType)

	// Budget policy: one token per upstream call, so the venue lookup and
	// the find call together cost exactly two.
	assert.InDelta(t, 8.0, lim.Tokens(), 0.1)
}

func TestSlotsComeBackAscending(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/3/venue", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":{"resy":1}}`))
	})
	mux.HandleFunc("/4/find", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"venues":[{"slots":[
			{"date":{"start":"2025-08-22 21:00:00"},"config":{"type":"Bar"}},
			{"date":{"start":"2025-08-22 17:15:00"},"config":{"type":"Standard"}}
		]}]}}`))
	})

	g := newResyStack(t, mux, ratelimit.New(1, 10))
	res, err := g.CheckAvailability(context.Background(), Query{
		PlatformURL: "https://resy.com/cities/a/venues/b",
		Date:        "2025-08-22",
		PartySize:   2,
	})
	require.NoError(t, err)
	require.Len(t, res.Slots, 2)
	assert.True(t, res.Slots[0].Time.Before(res.Slots[1].Time))
}

func TestInvalidInput(t *testing.T) {
	g := newResyStack(t, stubResyAPI(), ratelimit.New(1, 10))

	cases := []Query{
		{PlatformURL: "", Date: "2025-08-22", PartySize: 2},
		{PlatformURL: "https://resy.com/cities/a/venues/b", Date: "", PartySize: 2},
		{PlatformURL: "https://resy.com/cities/a/venues/b", Date: "08/22/2025", PartySize: 2},
		{PlatformURL: "https://resy.com/cities/a/venues/b", Date: "2025-08-22", PartySize: 0},
		{PlatformURL: "https://resy.com/cities/a/venues/b", Date: "2025-08-22", PartySize: -3},
	}
	for _, q := range cases {
		_, err := g.CheckAvailability(context.Background(), q)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", q)
	}
}

func TestUnsupportedPlatformSurfaces(t *testing.T) {
	g := newResyStack(t, stubResyAPI(), ratelimit.New(1, 10))
	_, err := g.CheckAvailability(context.Background(), Query{
		PlatformURL: "https://sevenrooms.example/venue",
		Date:        "2025-08-22",
		PartySize:   2,
	})
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}

func TestDrainedBudgetIsRateLimitedNotEmpty(t *testing.T) {
	lim := ratelimit.New(0.01, 1)
	require.True(t, lim.TryAcquire())

	g := newResyStack(t, stubResyAPI(), lim)
	g.Dispatcher.WaitTimeout = 50 * time.Millisecond

	_, err := g.CheckAvailability(context.Background(), Query{
		PlatformURL: "https://resy.com/cities/a/venues/b",
		Date:        "2025-08-22",
		PartySize:   2,
	})
	assert.ErrorIs(t, err, platform.ErrRateLimited)
}
