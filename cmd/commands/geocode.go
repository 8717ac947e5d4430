package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/datavis-fr/geobatch/geocode"
)

// NewGeocodeCommand returns the geocode subcommand.
func NewGeocodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "geocode",
		Usage: "Geocode a JSON array of addresses",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Input file, - for stdin",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file, - for stdout",
				Value:   "-",
			},
		},
		Action: runGeocode,
	}
}

type runSummary struct {
	RunID       string        `json:"run_id"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Concurrency int           `json:"concurrency"`
	MaxInFlight int           `json:"max_in_flight"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

type geocodeOutput struct {
	Run        runSummary          `json:"run"`
	Placements []geocode.Placement `json:"placements"`
	Failures   []geocode.Failure   `json:"failures"`
}

func summarize(res *geocode.BatchResult) runSummary {
	return runSummary{
		RunID:       res.Report.RunID,
		Total:       res.Report.Total,
		Succeeded:   len(res.Placements),
		Failed:      len(res.Failures),
		Concurrency: res.Report.Concurrency,
		MaxInFlight: res.Report.MaxInFlight,
		Elapsed:     res.Report.Elapsed,
	}
}

func runGeocode(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	addrs, err := readAddresses(cmd, cmd.String("input"))
	if err != nil {
		return err
	}

	res, err := a.geocodeAll(ctx, addrs)
	if err != nil {
		return err
	}

	out := geocodeOutput{
		Run:        summarize(res),
		Placements: res.Placements,
		Failures:   res.Failures,
	}
	if out.Placements == nil {
		out.Placements = []geocode.Placement{}
	}
	if out.Failures == nil {
		out.Failures = []geocode.Failure{}
	}
	return writeJSON(cmd, cmd.String("output"), out)
}
