package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/restweek/internal/catalog"
	"github.com/example/restweek/internal/gateway"
	"github.com/example/restweek/internal/platform"
	"github.com/example/restweek/internal/platform/resy"
	"github.com/example/restweek/internal/ratelimit"
)

type staticCatalog []catalog.Restaurant

func (c staticCatalog) List(ctx context.Context) ([]catalog.Restaurant, error) {
	return c, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	upstream := http.NewServeMux()
	upstream.HandleFunc("/3/venue", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":{"resy":55}}`))
	})
	upstream.HandleFunc("/4/find", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"venues":[{"slots":[
			{"date":{"start":"2025-08-22 17:00:00"},"config":{"type":"Patio"}},
			{"date":{"start":"2025-08-22 19:30:00"},"config":{"type":"Standard"}}
		]}]}}`))
	})
	stub := httptest.NewServer(upstream)
	t.Cleanup(stub.Close)

	reg := platform.NewRegistry()
	reg.Register(resy.New(resy.Config{APIBase: stub.URL}), "resy.com")
	d := platform.NewDispatcher(reg, ratelimit.New(100, 100), time.Second, zerolog.Nop())

	return &Server{
		Gateway: gateway.New(d, 5*time.Second, zerolog.Nop()),
		Catalog: staticCatalog{
			{Name: "Casa Verde", Neighborhood: "East Village", Tags: []string{"Italian"}, MealTypes: []string{"Dinner"}},
			{Name: "Blue Finch", Neighborhood: "Harlem", Tags: []string{"American"}, MealTypes: []string{"Lunch"}},
		},
		Log: zerolog.Nop(),
	}
}

func doGet(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAvailabilityEndpoint(t *testing.T) {
	h := newTestServer(t).Routes()
	rec := doGet(t, h, "/api/availability?platform_url=https://resy.com/cities/ny/venues/casa-verde&date=2025-08-22&party_size=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Slots []struct {
			Time        string `json:"time"`
			SeatingType string `json:"seating_type"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Slots, 2)
	assert.Equal(t, "17:00", body.Slots[0].Time)
	assert.Equal(t, "Patio", body.Slots[0].SeatingType)
	assert.Equal(t, "19:30", body.Slots[1].Time)
}

func TestAvailabilityErrorCategories(t *testing.T) {
	h := newTestServer(t).Routes()

	cases := []struct {
		url    string
		status int
		code   string
	}{
		{"/api/availability?date=2025-08-22", http.StatusBadRequest, "invalid_input"},
		{"/api/availability?platform_url=https://resy.com/cities/a/venues/b&date=nope", http.StatusBadRequest, "invalid_input"},
		{"/api/availability?platform_url=https://resy.com/cities/a/venues/b&date=2025-08-22&party_size=0", http.StatusBadRequest, "invalid_input"},
		{"/api/availability?platform_url=https://unknown.example/x&date=2025-08-22", http.StatusBadRequest, "unsupported_platform"},
	}
	for _, c := range cases {
		rec := doGet(t, h, c.url)
		assert.Equal(t, c.status, rec.Code, c.url)
		var body struct {
			Code string `json:"code"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), c.url)
		assert.Equal(t, c.code, body.Code, c.url)
	}
}

func TestRateLimitedMapsTo429(t *testing.T) {
	s := newTestServer(t)
	lim := ratelimit.New(0.01, 1)
	require.True(t, lim.TryAcquire())
	reg := platform.NewRegistry()
	reg.Register(resy.New(resy.Config{APIBase: "http://unused.invalid"}), "resy.com")
	d := platform.NewDispatcher(reg, lim, 20*time.Millisecond, zerolog.Nop())
	s.Gateway = gateway.New(d, 5*time.Second, zerolog.Nop())

	rec := doGet(t, s.Routes(), "/api/availability?platform_url=https://resy.com/cities/a/venues/b&date=2025-08-22")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body.Code)
}

func TestOpenTableIDBuildsRestrefURL(t *testing.T) {
	// No opentable adapter registered, so the constructed restref URL must
	// fall through to unsupported_platform rather than invalid_input.
	h := newTestServer(t).Routes()
	rec := doGet(t, h, "/api/availability?opentable_id=1084915&date=2025-08-22")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unsupported_platform", body.Code)
}

func TestRestaurantsFiltering(t *testing.T) {
	h := newTestServer(t).Routes()

	rec := doGet(t, h, "/api/restaurants?neighborhood=Harlem")
	require.Equal(t, http.StatusOK, rec.Code)
	var rs []catalog.Restaurant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rs))
	require.Len(t, rs, 1)
	assert.Equal(t, "Blue Finch", rs[0].Name)

	rec = doGet(t, h, "/api/restaurants?search=verde")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rs))
	require.Len(t, rs, 1)
	assert.Equal(t, "Casa Verde", rs[0].Name)
}

func TestFiltersEndpoint(t *testing.T) {
	h := newTestServer(t).Routes()
	rec := doGet(t, h, "/api/filters")
	require.Equal(t, http.StatusOK, rec.Code)

	var opts catalog.Options
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	assert.Equal(t, []string{"East Village", "Harlem"}, opts.Neighborhoods)
	assert.Equal(t, []string{"Dinner", "Lunch"}, opts.MealTypes)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t).Routes()
	rec := doGet(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
