// Package opentable adapts OpenTable's GraphQL availability endpoint to the
// availability model. The endpoint needs a CSRF token and a numeric
// restaurant id, both scraped from the restaurant's own page.
package opentable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/restweek/internal/availability"
	"github.com/example/restweek/internal/platform"
)

const defaultAPIBase = "https://www.opentable.com"

// Persisted-query hash for the RestaurantsAvailability operation, taken from
// the web client. Overridable via config when OpenTable rotates it.
const defaultPersistedQuerySHA256 = "b2d05a06151b3cb21d9dfce4f021303eeba288fac347068b29c1cb66badc46af"

const defaultUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:142.0) Gecko/20100101 Firefox/142.0"

// anchorHour is the local time the availability query centers on; upstream
// expresses every slot as a minute offset from it.
const anchorHour = 18

// The page embeds its bootstrap state as JSON in a script tag with this id.
var windowVarsRe = regexp.MustCompile(`(?s)<script[^>]*\bid="primary-window-vars"[^>]*>(.*?)</script>`)

type Config struct {
	APIBase  string
	QuerySHA string
	Timeout  time.Duration
}

type Adapter struct {
	hc   *http.Client
	base string
	sha  string
}

func New(cfg Config) *Adapter {
	base := cfg.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	sha := cfg.QuerySHA
	if strings.TrimSpace(sha) == "" {
		sha = defaultPersistedQuerySHA256
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		hc:   &http.Client{Timeout: timeout},
		base: strings.TrimRight(base, "/"),
		sha:  sha,
	}
}

func (a *Adapter) Name() string { return "opentable" }

// Resolve fetches the restaurant page and digs the CSRF token and numeric
// restaurant id out of the embedded window-vars blob.
func (a *Adapter) Resolve(ctx context.Context, pageURL string) (platform.Locator, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return platform.Locator{}, fmt.Errorf("%w: %v", platform.ErrUpstreamRequest, err)
	}
	req.Header.Set("user-agent", "curl/7.74.0")

	resp, err := a.hc.Do(req)
	if err != nil {
		return platform.Locator{}, fmt.Errorf("%w: page fetch: %v", platform.ErrUpstreamRequest, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return platform.Locator{}, fmt.Errorf("%w: page read: %v", platform.ErrUpstreamRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return platform.Locator{}, fmt.Errorf("%w: page status %d", platform.ErrUpstreamRequest, resp.StatusCode)
	}

	m := windowVarsRe.FindSubmatch(body)
	if m == nil {
		return platform.Locator{}, fmt.Errorf("%w: no window-vars block in page %s", platform.ErrUpstreamParse, pageURL)
	}

	var vars struct {
		WindowVariables struct {
			CSRFToken string `json:"__CSRF_TOKEN__"`
			OTGAData  struct {
				// cd6 carries the restaurant id as a string.
				CD6 string `json:"cd6"`
			} `json:"__OT_GA_DATA__"`
		} `json:"windowVariables"`
	}
	if err := json.Unmarshal(m[1], &vars); err != nil {
		return platform.Locator{}, fmt.Errorf("%w: window-vars json: %v", platform.ErrUpstreamParse, err)
	}
	token := vars.WindowVariables.CSRFToken
	rid := strings.TrimSpace(vars.WindowVariables.OTGAData.CD6)
	if token == "" || rid == "" {
		return platform.Locator{}, fmt.Errorf("%w: window-vars missing csrf token or restaurant id", platform.ErrUpstreamParse)
	}
	if _, err := strconv.ParseInt(rid, 10, 64); err != nil {
		return platform.Locator{}, fmt.Errorf("%w: non-numeric restaurant id %q", platform.ErrUpstreamParse, rid)
	}
	return platform.Locator{ID: rid, Token: token}, nil
}

// Fetch runs the RestaurantsAvailability persisted query. Each returned
// slot is a minute offset from the 18:00 anchor on the queried date;
// unavailable slots and slots resolving onto a neighboring date are
// dropped.
func (a *Adapter) Fetch(ctx context.Context, loc platform.Locator, date time.Time, partySize int) (availability.Result, error) {
	restaurantID, err := strconv.ParseInt(loc.ID, 10, 64)
	if err != nil {
		return availability.Result{}, fmt.Errorf("%w: non-numeric restaurant id %q", platform.ErrUpstreamParse, loc.ID)
	}

	dateStr := date.Format("2006-01-02")
	payload := map[string]any{
		"operationName": "RestaurantsAvailability",
		"variables": map[string]any{
			"onlyPop":           false,
			"forwardDays":       0,
			"requireTimes":      false,
			"requireTypes":      []string{"Standard", "Experience"},
			"restaurantIds":     []int64{restaurantID},
			"date":              dateStr,
			"time":              fmt.Sprintf("%02d:00", anchorHour),
			"backwardMinutes":   1080,
			"backwardTimeslots": 72,
			"forwardMinutes":    600,
			"forwardTimeslots":  72,
			"partySize":         partySize,
			"databaseRegion":    "NA",
		},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{
				"version":    1,
				"sha256Hash": a.sha,
			},
		},
	}
	b, _ := json.Marshal(payload)

	u := a.base + "/dapi/fe/gql?optype=query&opname=RestaurantsAvailability"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return availability.Result{}, fmt.Errorf("%w: %v", platform.ErrUpstreamRequest, err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("user-agent", defaultUA)
	req.Header.Set("x-csrf-token", loc.Token)
	req.Header.Set("x-query-timeout", "5500")

	resp, err := a.hc.Do(req)
	if err != nil {
		return availability.Result{}, fmt.Errorf("%w: availability: %v", platform.ErrUpstreamRequest, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return availability.Result{}, fmt.Errorf("%w: availability status %d", platform.ErrUpstreamRequest, resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Availability []struct {
				AvailabilityDays []struct {
					Slots []struct {
						IsAvailable       bool   `json:"isAvailable"`
						TimeOffsetMinutes *int   `json:"timeOffsetMinutes"`
						Type              string `json:"type"`
					} `json:"slots"`
				} `json:"availabilityDays"`
			} `json:"availability"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return availability.Result{}, fmt.Errorf("%w: availability response: %v", platform.ErrUpstreamParse, err)
	}
	if len(parsed.Data.Availability) == 0 {
		return availability.Result{}, fmt.Errorf("%w: availability response missing data.availability", platform.ErrUpstreamParse)
	}

	anchor := time.Date(date.Year(), date.Month(), date.Day(), anchorHour, 0, 0, 0, time.UTC)

	out := availability.Result{Slots: []availability.Slot{}}
	days := parsed.Data.Availability[0].AvailabilityDays
	if len(days) == 0 {
		return out, nil
	}
	for _, s := range days[0].Slots {
		if !s.IsAvailable || s.TimeOffsetMinutes == nil {
			continue
		}
		t := anchor.Add(time.Duration(*s.TimeOffsetMinutes) * time.Minute)
		if !availability.SameDate(t, date) {
			continue
		}
		seating := s.Type
		if seating == "" {
			seating = "Standard"
		}
		out.Slots = append(out.Slots, availability.Slot{Time: t, SeatingType: seating})
	}
	return out, nil
}
