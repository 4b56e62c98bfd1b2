// Package scrape pulls the Restaurant Week listing from the program API
// and turns it into catalog entries.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/restweek/internal/catalog"
)

const defaultAPIURL = "https://program-api.nyctourism.com/restaurant-week"

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64; rv:146.0) Gecko/20100101 Firefox/146.0"

// maxPages caps the pagination loop in case the API stops returning empty
// pages as its end marker.
const maxPages = 50

type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	hc     *http.Client
	apiURL string
	apiKey string
}

func New(cfg Config) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		hc:     &http.Client{Timeout: timeout},
		apiURL: apiURL,
		apiKey: cfg.APIKey,
	}
}

type item struct {
	ShortTitle   string   `json:"shortTitle"`
	Neighborhood string   `json:"neighborhood"`
	Tags         []string `json:"tags"`
	MealTypes    []string `json:"mealTypes"`
	Website      string   `json:"website"`
	Ecommerce    *struct {
		URL string `json:"url"`
	} `json:"ecommerce"`
}

// Fetch walks the program API page by page until an empty page.
func (c *Client) Fetch(ctx context.Context) ([]catalog.Restaurant, error) {
	var out []catalog.Restaurant
	for page := 1; page <= maxPages; page++ {
		items, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			if it.ShortTitle == "" {
				continue
			}
			r := catalog.Restaurant{
				Name:         it.ShortTitle,
				Neighborhood: it.Neighborhood,
				Tags:         it.Tags,
				MealTypes:    it.MealTypes,
				Website:      it.Website,
			}
			if it.Ecommerce != nil {
				r.ReservationURL = it.Ecommerce.URL
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]item, error) {
	body, _ := json.Marshal(map[string]any{"page": page, "lookup": map[string]any{}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("origin", "https://www.nyctourism.com")
	req.Header.Set("referer", "https://www.nyctourism.com/restaurant-week/")
	req.Header.Set("user-agent", defaultUA)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("restaurant week api: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("restaurant week api status %d", resp.StatusCode)
	}

	var parsed struct {
		Items []item `json:"items"`
	}
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, fmt.Errorf("restaurant week api page %d: %w", page, err)
	}
	return parsed.Items, nil
}
