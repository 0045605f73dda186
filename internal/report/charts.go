package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an echarts page with the length histogram and the
// per-type breakdown.
func RenderHTML(w io.Writer, s Summary, bins []Bin) error {
	lengths := make([]string, len(bins))
	counts := make([]opts.BarData, len(bins))
	for i, b := range bins {
		lengths[i] = strconv.Itoa(b.Length)
		counts[i] = opts.BarData{Value: b.Count}
	}

	lengthBar := charts.NewBar()
	lengthBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "KITTI tracklets", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tracklet lengths",
			Subtitle: fmt.Sprintf("%s: %d tracklets, %d frames", s.Fingerprint, s.Tracklets, s.Frames),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frames"}),
	)
	lengthBar.SetXAxis(lengths).AddSeries("tracklets", counts)

	types := make([]string, 0, len(s.ByType))
	for typ := range s.ByType {
		types = append(types, typ)
	}
	sort.Strings(types)
	typeCounts := make([]opts.BarData, len(types))
	for i, typ := range types {
		typeCounts[i] = opts.BarData{Value: s.ByType[typ]}
	}

	typeBar := charts.NewBar()
	typeBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracklets by type"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	typeBar.SetXAxis(types).
		AddSeries("tracklets", typeCounts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(lengthBar, typeBar)
	return page.Render(w)
}
