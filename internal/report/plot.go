package report

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tracklets/internal/kitti/annotations"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// ErrNoTracklets is returned when there is nothing to plot.
var ErrNoTracklets = errors.New("no tracklets to plot")

func lengthPlot(tracklets []annotations.Tracklet, title string) (*plot.Plot, error) {
	if len(tracklets) == 0 {
		return nil, ErrNoTracklets
	}
	values := make(plotter.Values, len(tracklets))
	maxLen := 1
	for i, t := range tracklets {
		values[i] = float64(t.Len())
		maxLen = max(maxLen, t.Len())
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Tracklet length (frames)"
	p.Y.Label.Text = "Tracklets"

	hist, err := plotter.NewHist(values, min(maxLen, 50))
	if err != nil {
		return nil, fmt.Errorf("build histogram: %w", err)
	}
	hist.LineStyle.Width = vg.Points(1)
	p.Add(hist)
	return p, nil
}

// WriteLengthPlot renders a PNG histogram of tracklet lengths to w.
func WriteLengthPlot(w io.Writer, tracklets []annotations.Tracklet, title string) error {
	p, err := lengthPlot(tracklets, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveLengthPlot writes the histogram to path; the extension picks the
// format.
func SaveLengthPlot(path string, tracklets []annotations.Tracklet, title string) error {
	p, err := lengthPlot(tracklets, title)
	if err != nil {
		return err
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
