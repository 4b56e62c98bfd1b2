package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchParsesItemsAcrossPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		var body struct {
			Page int `json:"page"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch body.Page {
		case 1:
			_, _ = w.Write([]byte(`{"items":[
				{"shortTitle":"Casa Verde","neighborhood":"East Village","tags":["Italian"],"mealTypes":["Dinner"],"website":"https://casaverde.example","ecommerce":{"url":"https://resy.com/cities/ny/venues/casa-verde"}},
				{"shortTitle":"Blue Finch","neighborhood":"Harlem","tags":["American"],"website":"https://bluefinch.example"}
			]}`))
		case 2:
			_, _ = w.Write([]byte(`{"items":[{"shortTitle":"Verde Cafe","neighborhood":"SoHo"}]}`))
		default:
			_, _ = w.Write([]byte(`{"items":[]}`))
		}
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL, APIKey: "test-key"})
	rs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rs, 3)

	assert.Equal(t, "Casa Verde", rs[0].Name)
	assert.Equal(t, "https://resy.com/cities/ny/venues/casa-verde", rs[0].ReservationURL)
	// Missing ecommerce block means no reservation link, not an error.
	assert.Empty(t, rs[1].ReservationURL)
	assert.Equal(t, "Verde Cafe", rs[2].Name)
}

func TestFetchSkipsUntitledItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Page int `json:"page"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Page == 1 {
			_, _ = w.Write([]byte(`{"items":[{"neighborhood":"Nowhere"},{"shortTitle":"Named"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL})
	rs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "Named", rs[0].Name)
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL})
	_, err := c.Fetch(context.Background())
	assert.Error(t, err)
}
