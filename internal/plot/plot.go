// Package plot renders recorded runs as PNG line charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/nvandessel/nestsim/internal/store"
)

// Default image size in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 640
)

// ErrNoData is returned when no series has at least two finite points.
var ErrNoData = errors.New("plot: nothing to draw")

// Series is one named line.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// Chart describes a line chart.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series

	// Width and Height default to DefaultWidth and DefaultHeight.
	Width  int
	Height int
}

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	{R: 128, G: 0, B: 128, A: 255},
	{R: 0, G: 128, B: 128, A: 255},
	chart.ColorBlack,
}

// Render writes c as a PNG. Series with fewer than two points are skipped.
func Render(w io.Writer, c Chart) error {
	var series []chart.Series
	for i, s := range c.Series {
		if len(s.X) < 2 || len(s.X) != len(s.Y) {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: s.X,
			YValues: s.Y,
			Style: chart.Style{
				StrokeColor: palette[i%len(palette)],
				StrokeWidth: 2.0,
			},
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}

	width, height := c.Width, c.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	graph := chart.Chart{
		Title:  c.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  c.XLabel,
			Style: chart.Style{FontSize: 10.0},
		},
		YAxis: chart.YAxis{
			Name:  c.YLabel,
			Style: chart.Style{FontSize: 10.0},
		},
		Series: series,
	}
	if len(series) > 1 {
		graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// SeriesFrom extracts xCol against yCol from rows, one series per block.
// Dummy rows and non-finite values are dropped. Series are named after the
// first column's value in the block unless that column is xCol.
func SeriesFrom(columns []string, rows []store.Row, xCol, yCol string) ([]Series, error) {
	xi, yi := indexOf(columns, xCol), indexOf(columns, yCol)
	if xi < 0 {
		return nil, fmt.Errorf("unknown column %q (have %v)", xCol, columns)
	}
	if yi < 0 {
		return nil, fmt.Errorf("unknown column %q (have %v)", yCol, columns)
	}

	var out []Series
	byBlock := map[int]int{}
	for _, row := range rows {
		if row.Dummy || xi >= len(row.Values) || yi >= len(row.Values) {
			continue
		}
		x, y := row.Values[xi], row.Values[yi]
		if !finite(x) || !finite(y) {
			continue
		}

		idx, ok := byBlock[row.Block]
		if !ok {
			name := fmt.Sprintf("block %d", row.Block)
			if xi != 0 && len(columns) > 0 {
				name = fmt.Sprintf("%s=%g", columns[0], row.Values[0])
			}
			out = append(out, Series{Name: name})
			idx = len(out) - 1
			byBlock[row.Block] = idx
		}
		out[idx].X = append(out[idx].X, x)
		out[idx].Y = append(out[idx].Y, y)
	}
	return out, nil
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
