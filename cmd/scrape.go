package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/restweek/internal/catalog"
	"github.com/example/restweek/internal/config"
	"github.com/example/restweek/internal/db"
	"github.com/example/restweek/internal/logging"
	"github.com/example/restweek/internal/migrate"
	"github.com/example/restweek/internal/scrape"
)

func newScrapeCmd() *cobra.Command {
	var (
		outPath  string
		doImport bool
	)

	c := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the Restaurant Week listing to JSON and/or into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx := context.Background()
			client := scrape.New(scrape.Config{APIURL: cfg.ScrapeAPIURL, APIKey: cfg.ScrapeAPIKey})
			rs, err := client.Fetch(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("restaurants", len(rs)).Msg("scraped restaurant week listing")

			if outPath != "" {
				b, err := json.MarshalIndent(rs, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, b, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "wrote %d restaurants to %s\n", len(rs), outPath)
			}

			if doImport {
				if cfg.DatabaseURL == "" {
					return fmt.Errorf("--import requires DATABASE_URL")
				}
				d, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
				if err := catalog.NewRepo(d).Import(ctx, rs); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "imported %d restaurants\n", len(rs))
			}
			return nil
		},
	}

	c.Flags().StringVar(&outPath, "out", "restaurant_week_data.json", "write the scraped catalog to this JSON file (empty to skip)")
	c.Flags().BoolVar(&doImport, "import", false, "upsert the scraped catalog into the database")
	return c
}
