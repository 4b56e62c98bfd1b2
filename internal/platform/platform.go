// Package platform routes availability queries to the reservation platform
// that backs a given restaurant URL and charges the shared request budget
// for every upstream call.
package platform

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/example/restweek/internal/availability"
)

var (
	// ErrUnsupportedPlatform means the reference matches no registered
	// adapter. Caller error, not retryable.
	ErrUnsupportedPlatform = errors.New("unsupported reservation platform")

	// ErrUpstreamParse means an upstream response was missing structure we
	// depend on (embedded token, JSON block, expected fields). Usually an
	// upstream layout change; hard failure for this request.
	ErrUpstreamParse = errors.New("upstream response parse failed")

	// ErrUpstreamRequest is a network failure or non-success status from an
	// upstream platform. Retryable with backoff.
	ErrUpstreamRequest = errors.New("upstream request failed")

	// ErrRateLimited means the shared budget could not grant a token within
	// the caller's deadline. Retryable after backing off.
	ErrRateLimited = errors.New("rate limited")
)

// Locator identifies a restaurant in a platform's native terms, derived
// per-query by Resolve and never persisted. Token carries any transient
// session credential (e.g. a CSRF token scraped alongside the id).
type Locator struct {
	ID    string
	Token string
}

// Adapter translates one platform's protocol into the availability model.
// Both operations perform exactly one upstream HTTP call and assume the
// caller has already taken a rate-limiter token; adapters never touch the
// limiter themselves.
type Adapter interface {
	Name() string

	// Resolve turns a reservation-page URL into a platform-native locator.
	Resolve(ctx context.Context, pageURL string) (Locator, error)

	// Fetch returns the open slots for the locator on the given date.
	Fetch(ctx context.Context, loc Locator, date time.Time, partySize int) (availability.Result, error)
}

// Registry maps domain suffixes to adapters. It is closed and enumerable:
// adding a platform is a Register call at construction, not a conditional
// scattered through dispatch code.
type Registry struct {
	entries []registryEntry
}

type registryEntry struct {
	domain  string
	adapter Adapter
}

func NewRegistry() *Registry { return &Registry{} }

// Register routes any hostname equal to or ending in one of the given
// domains to the adapter. First registration wins on overlap.
func (r *Registry) Register(a Adapter, domains ...string) {
	for _, d := range domains {
		r.entries = append(r.entries, registryEntry{domain: strings.ToLower(d), adapter: a})
	}
}

// Classify picks the adapter for a reservation URL by case-insensitive
// suffix match on its hostname. No match is a hard error: an unsupported
// platform is a caller configuration mistake, not "no availability".
func (r *Registry) Classify(rawURL string) (Adapter, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil, ErrUnsupportedPlatform
	}
	host := strings.ToLower(u.Hostname())
	for _, e := range r.entries {
		if host == e.domain || strings.HasSuffix(host, "."+e.domain) {
			return e.adapter, nil
		}
	}
	return nil, ErrUnsupportedPlatform
}
