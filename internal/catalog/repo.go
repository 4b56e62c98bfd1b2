package catalog

import (
	"context"
	"strings"

	"github.com/example/restweek/internal/db"
)

// Repo is the Postgres-backed catalog store. Tags and meal types are kept
// as comma-separated text, split on read.
type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) List(ctx context.Context) ([]Restaurant, error) {
	rows, err := r.db.Query(ctx, `
SELECT name, neighborhood, tags, meal_types, website, reservation_url
FROM restaurants
ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Restaurant
	for rows.Next() {
		var rest Restaurant
		var tags, meals string
		if err := rows.Scan(&rest.Name, &rest.Neighborhood, &tags, &meals, &rest.Website, &rest.ReservationURL); err != nil {
			return nil, err
		}
		rest.Tags = splitCSV(tags)
		rest.MealTypes = splitCSV(meals)
		out = append(out, rest)
	}
	return out, rows.Err()
}

// Upsert inserts or refreshes one restaurant, keyed by name. Imports are
// idempotent so the refresher can re-run freely.
func (r *Repo) Upsert(ctx context.Context, rest Restaurant) error {
	return r.db.Exec(ctx, `
INSERT INTO restaurants(name, neighborhood, tags, meal_types, website, reservation_url)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (name) DO UPDATE SET
	neighborhood=EXCLUDED.neighborhood,
	tags=EXCLUDED.tags,
	meal_types=EXCLUDED.meal_types,
	website=EXCLUDED.website,
	reservation_url=EXCLUDED.reservation_url,
	updated_at=now()`,
		rest.Name, rest.Neighborhood, joinCSV(rest.Tags), joinCSV(rest.MealTypes), rest.Website, rest.ReservationURL)
}

// Import upserts a whole scrape result.
func (r *Repo) Import(ctx context.Context, rs []Restaurant) error {
	for _, rest := range rs {
		if rest.Name == "" {
			continue
		}
		if err := r.Upsert(ctx, rest); err != nil {
			return err
		}
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinCSV(parts []string) string {
	var cleaned []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, ",")
}
