package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/restweek/internal/config"
	"github.com/example/restweek/internal/platform"
	"github.com/example/restweek/internal/platform/opentable"
	"github.com/example/restweek/internal/platform/resy"
	"github.com/example/restweek/internal/ratelimit"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "restweek",
		Short: "Restaurant Week availability checker: catalog browsing plus rate-gated reservation lookups across platforms",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file (env overrides it)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newScrapeCmd())
	root.AddCommand(newUserCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newDispatcher wires the one shared limiter, the platform registry and the
// dispatcher from config. Both the server and the one-shot check command go
// through here so every upstream call shares the same budget discipline.
func newDispatcher(cfg config.Config, log zerolog.Logger) *platform.Dispatcher {
	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)

	reg := platform.NewRegistry()
	reg.Register(resy.New(resy.Config{
		APIBase: cfg.ResyAPIBase,
		APIKey:  cfg.ResyAPIKey,
		Timeout: cfg.UpstreamTimeout,
	}), "resy.com")
	reg.Register(opentable.New(opentable.Config{
		APIBase:  cfg.OpenTableAPIBase,
		QuerySHA: cfg.OpenTableQuerySHA,
		Timeout:  cfg.UpstreamTimeout,
	}), "opentable.com")

	return platform.NewDispatcher(reg, limiter, cfg.LimiterWait, log)
}
