package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ramonehamilton/GCG-Companion/internal/report"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Width  string // e.g. "1200px"
	Height string
	Theme  string
	Colors []string
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:  "1200px",
		Height: "600px",
		Theme:  "light",
		Colors: []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666"},
	}
}

// ChartRenderer draws payloads as go-echarts bar charts and returns the
// page HTML.
type ChartRenderer struct {
	config ChartConfig
}

// NewChartRenderer creates a chart renderer.
func NewChartRenderer(config ChartConfig) *ChartRenderer {
	return &ChartRenderer{config: config}
}

// Render implements report.Renderer.
func (r *ChartRenderer) Render(ctx context.Context, template string, payload report.RenderPayload) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title, data, ok, err := rows(payload)
	if err != nil || !ok {
		return nil, err
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: template,
			Width:     r.config.Width,
			Height:    r.config.Height,
			Theme:     r.config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithColorsOpts(opts.Colors(r.config.Colors)),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: 45},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "%",
		}),
	)

	labels := make([]string, len(data))
	usage := make([]opts.BarData, len(data))
	for i, row := range data {
		labels[i] = row.Name
		usage[i] = opts.BarData{Value: row.UsageRate}
	}
	bar.SetXAxis(labels)

	if payload.RenderType == report.RenderTypeAvatar {
		winRate := make([]opts.BarData, len(data))
		for i, row := range data {
			winRate[i] = opts.BarData{Value: row.WinRate}
		}
		bar.AddSeries("Win rate", winRate)
	}
	bar.AddSeries("Usage rate", usage).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
