package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/restweek/internal/config"
	"github.com/example/restweek/internal/gateway"
	"github.com/example/restweek/internal/logging"
)

func newCheckCmd() *cobra.Command {
	var (
		date      string
		partySize int
	)

	c := &cobra.Command{
		Use:   "check <reservation-url>",
		Short: "One-shot availability check for a reservation page URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			if date == "" {
				date = time.Now().Format("2006-01-02")
			}

			gw := gateway.New(newDispatcher(cfg, log), cfg.RequestTimeout, log)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
			defer cancel()

			res, err := gw.CheckAvailability(ctx, gateway.Query{
				PlatformURL: args[0],
				Date:        date,
				PartySize:   partySize,
			})
			if err != nil {
				return err
			}

			if len(res.Slots) == 0 {
				fmt.Fprintln(os.Stdout, "no open slots")
				return nil
			}
			for _, s := range res.Slots {
				fmt.Fprintf(os.Stdout, "%s - %s\n", s.Time.Format("15:04"), s.SeatingType)
			}
			return nil
		},
	}

	c.Flags().StringVar(&date, "date", "", "date to search, YYYY-MM-DD (default today)")
	c.Flags().IntVar(&partySize, "party-size", 2, "party size")
	return c
}
