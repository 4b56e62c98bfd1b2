package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []Restaurant{
	{Name: "Casa Verde", Neighborhood: "East Village", Tags: []string{"Italian", "Outdoor"}, MealTypes: []string{"Dinner"}},
	{Name: "Blue Finch", Neighborhood: "Harlem", Tags: []string{"American"}, MealTypes: []string{"Lunch", "Dinner"}},
	{Name: "Verde Cafe", Neighborhood: "East Village", Tags: []string{"Mexican"}, MealTypes: []string{"Brunch"}},
}

func TestFilterByNeighborhood(t *testing.T) {
	got := Filter(sample, Query{Neighborhood: "East Village"})
	require.Len(t, got, 2)
	assert.Equal(t, "Casa Verde", got[0].Name)
	assert.Equal(t, "Verde Cafe", got[1].Name)
}

func TestFilterByTagAndMealType(t *testing.T) {
	got := Filter(sample, Query{Tag: "American"})
	require.Len(t, got, 1)
	assert.Equal(t, "Blue Finch", got[0].Name)

	got = Filter(sample, Query{MealTypes: []string{"Brunch", "Lunch"}})
	require.Len(t, got, 2)
}

func TestFilterSearchIsCaseInsensitive(t *testing.T) {
	got := Filter(sample, Query{Search: "verde"})
	require.Len(t, got, 2)

	got = Filter(sample, Query{Search: "FINCH"})
	require.Len(t, got, 1)
}

func TestFilterCombines(t *testing.T) {
	got := Filter(sample, Query{Neighborhood: "East Village", Search: "casa"})
	require.Len(t, got, 1)
	assert.Equal(t, "Casa Verde", got[0].Name)
}

func TestFilterOptionsSortedDistinct(t *testing.T) {
	opts := FilterOptions(sample)
	assert.Equal(t, []string{"East Village", "Harlem"}, opts.Neighborhoods)
	assert.Equal(t, []string{"American", "Italian", "Mexican", "Outdoor"}, opts.Tags)
	assert.Equal(t, []string{"Brunch", "Dinner", "Lunch"}, opts.MealTypes)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name":"Casa Verde","neighborhood":"East Village","tags":["Italian"],"meal_types":["Dinner"],"website":"https://example.com","reservation_url":"https://resy.com/cities/ny/venues/casa-verde"}
	]`), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	rs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "Casa Verde", rs[0].Name)
	assert.Equal(t, []string{"Italian"}, rs[0].Tags)
}

func TestFileStoreBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json]`), 0o600))
	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	assert.Equal(t, "a,b", joinCSV([]string{" a ", "", "b"}))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , ,b"))
	assert.Nil(t, splitCSV(""))
}
