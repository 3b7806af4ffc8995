package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/ramonehamilton/GCG-Companion/internal/report"
)

// TableConfig holds configuration for PNG tables.
type TableConfig struct {
	Width      int
	RowHeight  int
	Padding    int
	Background color.Color
	Foreground color.Color
	Accent     color.Color
}

// DefaultTableConfig returns default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		Width:      720,
		RowHeight:  22,
		Padding:    16,
		Background: color.White,
		Foreground: color.Black,
		Accent:     color.RGBA{R: 0x54, G: 0x70, B: 0xC6, A: 0xFF},
	}
}

// TableRenderer draws payloads as a PNG table with a usage bar per row.
// PNG is lossless, so the payload quality is not used.
type TableRenderer struct {
	config TableConfig
}

// NewTableRenderer creates a table renderer.
func NewTableRenderer(config TableConfig) *TableRenderer {
	return &TableRenderer{config: config}
}

// Height returns the image height for n rows.
func (r *TableRenderer) Height(n int) int {
	// Title and column header take two rows.
	return 2*r.config.Padding + (n+2)*r.config.RowHeight
}

// Render implements report.Renderer.
func (r *TableRenderer) Render(ctx context.Context, _ string, payload report.RenderPayload) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title, data, ok, err := rows(payload)
	if err != nil || !ok {
		return nil, err
	}

	cfg := r.config
	dc := gg.NewContext(cfg.Width, r.Height(len(data)))
	if !payload.OmitBackground {
		dc.SetColor(cfg.Background)
		dc.Clear()
	}

	pad := float64(cfg.Padding)
	rowH := float64(cfg.RowHeight)
	width := float64(cfg.Width)
	barX := width * 0.6
	barW := width - barX - pad

	dc.SetColor(cfg.Foreground)
	dc.DrawString(title, pad, pad+rowH*0.7)

	y := pad + rowH
	var header string
	if payload.RenderType == report.RenderTypeAvatar {
		header = fmt.Sprintf("%-24s %6s %6s %9s", "Card", "Uses", "Wins", "Win rate")
	} else {
		header = fmt.Sprintf("%-24s %-10s %6s", "Card", "Type", "Uses")
	}
	dc.DrawString(header, pad, y+rowH*0.7)
	dc.DrawString("Usage rate", barX, y+rowH*0.7)

	for _, row := range data {
		y += rowH
		var line string
		if payload.RenderType == report.RenderTypeAvatar {
			line = fmt.Sprintf("%-24s %6d %6d %8.3f%%", truncate(row.Name, 24), row.UseCount, row.Wins, row.WinRate)
		} else {
			line = fmt.Sprintf("%-24s %-10s %6d", truncate(row.Name, 24), row.Type, row.UseCount)
		}
		dc.SetColor(cfg.Foreground)
		dc.DrawString(line, pad, y+rowH*0.7)

		// Usage rate can exceed 100% for character cards.
		share := row.UsageRate / 100
		if share > 1 {
			share = 1
		}
		if share > 0 {
			dc.SetColor(cfg.Accent)
			dc.DrawRectangle(barX, y+rowH*0.2, barW*share, rowH*0.6)
			dc.Fill()
		}
		dc.SetColor(cfg.Foreground)
		dc.DrawString(fmt.Sprintf("%.3f%%", row.UsageRate), barX+2, y+rowH*0.7)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode table: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
