package commands

import (
	"github.com/urfave/cli/v3"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "geobatch",
		Usage: "Geocode address lists with bounded concurrency and bin them into heat maps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum number of lookups in flight",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while the batch runs",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Nominatim base URL",
			},
			&cli.FloatFlag{
				Name:  "rps",
				Usage: "Requests per second allowed against the geocoder",
			},
			&cli.StringFlag{
				Name:  "cache",
				Usage: "Geocode cache driver: none, memory or sqlite",
			},
			&cli.StringFlag{
				Name:  "cache-path",
				Usage: "SQLite cache file (with --cache sqlite)",
			},
		},
		Commands: []*cli.Command{
			NewGeocodeCommand(),
			NewHeatmapCommand(),
		},
	}
}
