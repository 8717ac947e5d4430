package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/datavis-fr/geobatch/core"
	"github.com/datavis-fr/geobatch/heatmap"
)

// NewHeatmapCommand returns the heatmap subcommand.
func NewHeatmapCommand() *cli.Command {
	return &cli.Command{
		Name:  "heatmap",
		Usage: "Geocode a JSON array of addresses and bin them into a lat/lon grid",
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
			&cli.FloatFlag{
				Name:  "cell",
				Usage: "Cell size in degrees",
			},
		},
		Action: runHeatmap,
	}
}

type heatmapOutput struct {
	Run      runSummary     `json:"run"`
	Bounds   heatmap.Bounds `json:"bounds"`
	CellSize float64        `json:"cell_size"`
	Rows     int            `json:"rows"`
	Cols     int            `json:"cols"`
	Dropped  int            `json:"dropped"`
	Cells    []heatmap.Cell `json:"cells"`
}

func runHeatmap(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cellSize := a.cfg.Heatmap.CellSize
	if cmd.IsSet("cell") {
		cellSize = cmd.Float("cell")
	}
	grid, err := heatmap.NewGrid(heatmap.FranceBounds, cellSize)
	if err != nil {
		return err
	}

	addrs, err := readAddresses(cmd, cmd.String("input"))
	if err != nil {
		return err
	}

	res, err := a.geocodeAll(ctx, addrs)
	if err != nil {
		return err
	}

	for _, p := range res.Placements {
		if !grid.Add(heatmap.Point{Lat: p.Location.Lat, Lon: p.Location.Lon, Weight: p.Address.Weight}) {
			a.logger.Debug("point outside heat map bounds",
				core.F("index", p.Index),
				core.F("lat", p.Location.Lat),
				core.F("lon", p.Location.Lon),
			)
		}
	}

	rows, cols := grid.Dims()
	return writeJSON(cmd, cmd.String("output"), heatmapOutput{
		Run:      summarize(res),
		Bounds:   heatmap.FranceBounds,
		CellSize: cellSize,
		Rows:     rows,
		Cols:     cols,
		Dropped:  grid.Dropped(),
		Cells:    grid.Cells(),
	})
}
