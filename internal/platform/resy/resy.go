// Package resy adapts the Resy search API (venue lookup + find) to the
// availability model.
package resy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/example/restweek/internal/availability"
	"github.com/example/restweek/internal/platform"
)

const defaultAPIBase = "https://api.resy.com"

// Resy ships this key in its public web bundle; it identifies the web app,
// not a user.
const defaultAPIKey = "VbWk7s3L4KiK5fzlO7JD3Q5EYolJI7n5"

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64; rv:138.0) Gecko/20100101 Firefox/138.0"

// Reservation page paths look like /cities/new-york-ny/venues/example or the
// older /cities/new-york-ny/example.
var pathRe = regexp.MustCompile(`^/cities/([^/]+)/(?:venues/)?([^/?]+)/?`)

type Config struct {
	APIBase string
	APIKey  string
	Timeout time.Duration
}

type Adapter struct {
	hc     *http.Client
	base   string
	apiKey string
}

func New(cfg Config) *Adapter {
	base := cfg.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	key := cfg.APIKey
	if key == "" {
		key = defaultAPIKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		hc:     &http.Client{Timeout: timeout},
		base:   base,
		apiKey: key,
	}
}

func (a *Adapter) Name() string { return "resy" }

// Resolve parses the city and venue slug out of a resy.com reservation URL
// and looks up the numeric venue id.
func (a *Adapter) Resolve(ctx context.Context, pageURL string) (platform.Locator, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return platform.Locator{}, fmt.Errorf("%w: bad resy url %q", platform.ErrUpstreamParse, pageURL)
	}
	m := pathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return platform.Locator{}, fmt.Errorf("%w: no city/slug in resy url path %q", platform.ErrUpstreamParse, u.Path)
	}
	city, slug := m[1], m[2]

	q := url.Values{}
	q.Set("url_slug", slug)
	q.Set("location", city)
	status, body, err := a.do(ctx, http.MethodGet, a.base+"/3/venue?"+q.Encode(), nil)
	if err != nil {
		return platform.Locator{}, fmt.Errorf("%w: venue lookup: %v", platform.ErrUpstreamRequest, err)
	}
	if status != http.StatusOK {
		return platform.Locator{}, fmt.Errorf("%w: venue lookup status %d", platform.ErrUpstreamRequest, status)
	}

	var parsed struct {
		ID struct {
			Resy *int64 `json:"resy"`
		} `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ID.Resy == nil {
		return platform.Locator{}, fmt.Errorf("%w: venue lookup response missing id.resy", platform.ErrUpstreamParse)
	}
	return platform.Locator{ID: strconv.FormatInt(*parsed.ID.Resy, 10)}, nil
}

// Fetch queries /4/find for the venue. A response with zero venues is a
// successful empty result, not an error.
func (a *Adapter) Fetch(ctx context.Context, loc platform.Locator, date time.Time, partySize int) (availability.Result, error) {
	venueID, err := strconv.ParseInt(loc.ID, 10, 64)
	if err != nil {
		return availability.Result{}, fmt.Errorf("%w: non-numeric resy venue id %q", platform.ErrUpstreamParse, loc.ID)
	}

	payload := map[string]any{
		// lat/long are deprecated but the endpoint still requires them.
		"lat":        0,
		"long":       0,
		"day":        date.Format("2006-01-02"),
		"party_size": partySize,
		"venue_id":   venueID,
	}
	b, _ := json.Marshal(payload)
	status, body, err := a.do(ctx, http.MethodPost, a.base+"/4/find", b)
	if err != nil {
		return availability.Result{}, fmt.Errorf("%w: find: %v", platform.ErrUpstreamRequest, err)
	}
	if status != http.StatusOK {
		return availability.Result{}, fmt.Errorf("%w: find status %d", platform.ErrUpstreamRequest, status)
	}

	var parsed struct {
		Results struct {
			Venues []struct {
				Slots []struct {
					Date struct {
						Start string `json:"start"`
					} `json:"date"`
					Config struct {
						Type string `json:"type"`
					} `json:"config"`
				} `json:"slots"`
			} `json:"venues"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return availability.Result{}, fmt.Errorf("%w: find response: %v", platform.ErrUpstreamParse, err)
	}
	if len(parsed.Results.Venues) == 0 {
		return availability.Result{}, nil
	}

	out := availability.Result{Slots: make([]availability.Slot, 0, len(parsed.Results.Venues[0].Slots))}
	for _, s := range parsed.Results.Venues[0].Slots {
		start, err := parseStart(s.Date.Start)
		if err != nil {
			continue
		}
		if !availability.SameDate(start, date) {
			continue
		}
		seating := s.Config.Type
		if seating == "" {
			seating = "Standard"
		}
		out.Slots = append(out.Slots, availability.Slot{Time: start, SeatingType: seating})
	}
	return out, nil
}

// parseStart handles the "2025-08-22 17:00:00" shape /4/find returns, plus
// the ISO variant seen on some venues.
func parseStart(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

func (a *Adapter) do(ctx context.Context, method, rawURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, a.apiKey))
	req.Header.Set("content-type", "application/json")
	req.Header.Set("user-agent", defaultUA)
	req.Header.Set("origin", "https://resy.com")
	req.Header.Set("x-origin", "https://resy.com")

	resp, err := a.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}
