package monitor

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scanfile/internal/lidar/scanfile"
)

// ErrEmptyWindow is returned when asked to plot a window with no pulses.
var ErrEmptyWindow = errors.New("monitor: window has no pulses")

// maxLegendLines caps the number of per-scanline series in the angle plot.
// Scanlines beyond it share colours.
const maxLegendLines = 12

// PlotWindowAngles saves an azimuth/zenith scatter of the window's pulses,
// one colour per scan line.
func PlotWindowAngles(w *scanfile.Window, path string) error {
	if w.Len() == 0 {
		return ErrEmptyWindow
	}

	byLine := make(map[uint32]plotter.XYs)
	for _, p := range w.Pulses {
		byLine[p.Scanline] = append(byLine[p.Scanline], plotter.XY{X: float64(p.Azimuth), Y: float64(p.Zenith)})
	}
	lines := make([]uint32, 0, len(byLine))
	for l := range byLine {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })

	p := plot.New()
	first, last := w.Pulses[0].PulseID, w.Pulses[len(w.Pulses)-1].PulseID
	p.Title.Text = fmt.Sprintf("Pulses %d-%d - Beam Angles", first, last)
	p.X.Label.Text = "Azimuth (deg)"
	p.Y.Label.Text = "Zenith (deg)"

	colors := generateColors(min(len(lines), maxLegendLines))
	for i, l := range lines {
		s, err := plotter.NewScatter(byLine[l])
		if err != nil {
			return fmt.Errorf("failed to create scatter for scanline %d: %w", l, err)
		}
		s.GlyphStyle.Color = colors[i%len(colors)]
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
		if i < maxLegendLines {
			p.Legend.Add(fmt.Sprintf("line %d", l), s)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save angle plot %s: %w", path, err)
	}
	return nil
}

// PlotPointsPerPulse saves a line of returns per pulse against pulse ID.
func PlotPointsPerPulse(w *scanfile.Window, path string) error {
	if w.Len() == 0 {
		return ErrEmptyWindow
	}

	pts := make(plotter.XYs, 0, len(w.Pulses))
	for _, pulse := range w.Pulses {
		pts = append(pts, plotter.XY{X: float64(pulse.PulseID), Y: float64(pulse.PointCount)})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Returns per Pulse (%d pulses, %d points)", len(w.Pulses), len(w.Points))
	p.X.Label.Text = "Pulse ID"
	p.Y.Label.Text = "Returns"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)

	if err := p.Save(14*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save returns plot %s: %w", path, err)
	}
	return nil
}

// PlotWindow writes both window plots into dir, named after the window's
// pulse range, and returns their paths.
func PlotWindow(w *scanfile.Window, dir string) ([]string, error) {
	if w.Len() == 0 {
		return nil, ErrEmptyWindow
	}
	base := fmt.Sprintf("pulses_%08d_%08d", w.Pulses[0].PulseID, w.Pulses[len(w.Pulses)-1].PulseID)
	anglePath := filepath.Join(dir, base+"_angles.png")
	returnsPath := filepath.Join(dir, base+"_returns.png")

	if err := PlotWindowAngles(w, anglePath); err != nil {
		return nil, err
	}
	if err := PlotPointsPerPulse(w, returnsPath); err != nil {
		return nil, err
	}
	return []string{anglePath, returnsPath}, nil
}

func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
