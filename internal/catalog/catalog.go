// Package catalog holds the Restaurant Week restaurant listing and its
// filtering. The catalog is small enough to filter in memory, so stores
// only need to produce the full list.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

type Restaurant struct {
	Name           string   `json:"name"`
	Neighborhood   string   `json:"neighborhood"`
	Tags           []string `json:"tags"`
	MealTypes      []string `json:"meal_types"`
	Website        string   `json:"website"`
	ReservationURL string   `json:"reservation_url,omitempty"`
}

// Store produces the current restaurant list. Implementations: FileStore
// (JSON file, the no-database mode) and Repo (Postgres).
type Store interface {
	List(ctx context.Context) ([]Restaurant, error)
}

// Query filters the catalog. Zero values mean "no constraint".
type Query struct {
	Neighborhood string
	Tag          string
	MealTypes    []string
	Search       string
}

// Filter applies q to rs, preserving order.
func Filter(rs []Restaurant, q Query) []Restaurant {
	out := make([]Restaurant, 0, len(rs))
	for _, r := range rs {
		if q.Neighborhood != "" && r.Neighborhood != q.Neighborhood {
			continue
		}
		if q.Tag != "" && !contains(r.Tags, q.Tag) {
			continue
		}
		if len(q.MealTypes) > 0 && !containsAny(r.MealTypes, q.MealTypes) {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Options are the distinct filter values the catalog currently offers.
type Options struct {
	Neighborhoods []string `json:"neighborhoods"`
	Tags          []string `json:"tags"`
	MealTypes     []string `json:"meal_types"`
}

func FilterOptions(rs []Restaurant) Options {
	neighborhoods := map[string]struct{}{}
	tags := map[string]struct{}{}
	meals := map[string]struct{}{}
	for _, r := range rs {
		if r.Neighborhood != "" {
			neighborhoods[r.Neighborhood] = struct{}{}
		}
		for _, t := range r.Tags {
			tags[t] = struct{}{}
		}
		for _, m := range r.MealTypes {
			meals[m] = struct{}{}
		}
	}
	return Options{
		Neighborhoods: sortedKeys(neighborhoods),
		Tags:          sortedKeys(tags),
		MealTypes:     sortedKeys(meals),
	}
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func containsAny(haystack, needles []string) bool {
	for _, n := range needles {
		if contains(haystack, n) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FileStore serves the catalog from a JSON file, matching the scraper's
// output format. The file is read once.
type FileStore struct {
	restaurants []Restaurant
}

func NewFileStore(path string) (*FileStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog file: %w", err)
	}
	var rs []Restaurant
	if err := json.Unmarshal(b, &rs); err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return &FileStore{restaurants: rs}, nil
}

func (s *FileStore) List(ctx context.Context) ([]Restaurant, error) {
	return s.restaurants, nil
}
