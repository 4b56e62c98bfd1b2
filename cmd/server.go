package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/restweek/internal/auth"
	"github.com/example/restweek/internal/catalog"
	"github.com/example/restweek/internal/config"
	"github.com/example/restweek/internal/db"
	"github.com/example/restweek/internal/gateway"
	"github.com/example/restweek/internal/logging"
	"github.com/example/restweek/internal/migrate"
	"github.com/example/restweek/internal/scrape"
	"github.com/example/restweek/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the availability API (and catalog refresher when a database is configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			dispatcher := newDispatcher(cfg, log)
			gw := gateway.New(dispatcher, cfg.RequestTimeout, log)

			srv := &web.Server{
				Gateway:   gw,
				StaticDir: cfg.StaticDir,
				Log:       log,
			}

			g, ctx := errgroup.WithContext(ctx)

			if cfg.DatabaseURL != "" {
				d, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := d.Ping(ctx); err != nil {
					return fmt.Errorf("db ping: %w", err)
				}
				if migrateUp {
					if err := migrate.Up(ctx, d); err != nil {
						return err
					}
				}

				repo := catalog.NewRepo(d)
				srv.Catalog = repo
				srv.Auth = auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
				srv.Refresher = &scrape.Refresher{
					Client:   scrape.New(scrape.Config{APIURL: cfg.ScrapeAPIURL, APIKey: cfg.ScrapeAPIKey}),
					Repo:     repo,
					Interval: cfg.RefreshInterval,
					Log:      log,
				}
				if cfg.RefreshInterval > 0 {
					refresher := srv.Refresher
					g.Go(func() error {
						err := refresher.Run(ctx)
						if err == context.Canceled {
							return nil
						}
						return err
					})
				}
			} else {
				fs, err := catalog.NewFileStore(cfg.CatalogPath)
				if err != nil {
					return err
				}
				srv.Catalog = fs
				log.Info().Str("path", cfg.CatalogPath).Msg("serving catalog from file (no database configured)")
			}

			g.Go(func() error {
				return web.Start(ctx, cfg.ListenAddr, srv.Routes(), log)
			})
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
