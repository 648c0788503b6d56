package monitor

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/scanfile/internal/lidar/scanfile"
)

// maxHTMLPoints bounds the points rendered into one page; larger windows
// are strided.
const maxHTMLPoints = 50000

// RenderPointsHTML writes a go-echarts scatter of the window's point X/Y,
// coloured by range.
func RenderPointsHTML(w io.Writer, win *scanfile.Window, title string) error {
	n := 0
	if win != nil {
		n = len(win.Points)
	}
	stride := 1
	if n > maxHTMLPoints {
		stride = (n + maxHTMLPoints - 1) / maxHTMLPoints
	}

	data := make([]opts.ScatterData, 0, n/stride+1)
	pad := 1.0
	maxRange := 0.0
	for i := 0; i < n; i += stride {
		pt := win.Points[i]
		if pt.Range == 0 {
			continue
		}
		pad = math.Max(pad, math.Max(math.Abs(pt.X), math.Abs(pt.Y)))
		maxRange = math.Max(maxRange, pt.Range)
		data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y, pt.Range}})
	}
	pad = math.Ceil(pad*1.05) + 1

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("pulses=%d points=%d stride=%d", win.Len(), len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(math.Max(maxRange, 1)),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render points chart: %w", err)
	}
	return nil
}
