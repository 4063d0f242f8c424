// Package chart renders transition-time histograms and eye diagrams.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/bemasher/i2ctrace/stats"
)

// Size of rendered images.
var (
	Width  = 8 * vg.Inch
	Height = 6 * vg.Inch
)

// Bins is the number of histogram bins.
const Bins = 50

func translucent(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}

// Histogram overlays the rise or fall times of each device on one line.
func Histogram(tt *stats.Transitions, rising bool) (*plot.Plot, error) {
	slope, direction := "falling", "from high to low"
	if rising {
		slope, direction = "rising", "from low to high"
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s edge transition time", tt.Line, slope)
	p.X.Label.Text = fmt.Sprintf("Transition time %s [ns]", direction)
	p.Y.Label.Text = "Count"
	p.Legend.Top = true
	p.Legend.Padding = vg.Points(5)

	for idx, g := range tt.Devices {
		values := g.Fall
		if rising {
			values = g.Rise
		}
		if len(values) == 0 {
			continue
		}

		h, err := plotter.NewHist(plotter.Values(values), Bins)
		if err != nil {
			return nil, errors.Wrapf(err, "histogram for 0x%02X", g.Address)
		}
		h.FillColor = translucent(plotutil.Color(idx), 0x60)
		h.LineStyle.Width = 0

		p.Add(h)
		p.Legend.Add(fmt.Sprintf("Addr 0x%02X, %d edges", g.Address, len(values)), h)
	}

	return p, nil
}

// Eye scatters the points of a window, time in microseconds against volts.
// The voltage axis spans -0.5V to vbus+1V.
func Eye(title string, w *stats.Window, vbus float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%d wfrms)", title, w.Traces)
	p.X.Label.Text = "Time [µs]"
	p.Y.Label.Text = "Amplitude [V]"
	p.Y.Min, p.Y.Max = -0.5, vbus+1
	p.Add(plotter.NewGrid())

	if len(w.Points) == 0 {
		return p, nil
	}

	xys := make(plotter.XYs, len(w.Points))
	for idx, pt := range w.Points {
		xys[idx].X, xys[idx].Y = pt.T, pt.V
	}

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, errors.Wrap(err, "eye scatter")
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(0.5)
	s.GlyphStyle.Color = translucent(plotutil.Color(0), 0x40)

	p.Add(s)
	return p, nil
}

// Save renders p as a PNG into filename.
func Save(p *plot.Plot, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := Write(p, f); err != nil {
		f.Close()
		return errors.Wrap(err, filename)
	}
	return f.Close()
}

// Write renders p as a PNG to w.
func Write(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
