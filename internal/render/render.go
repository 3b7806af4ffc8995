// Package render turns report payloads into images: interactive HTML charts
// or static PNG tables.
package render

import (
	"errors"
	"fmt"

	"github.com/ramonehamilton/GCG-Companion/internal/report"
)

// ErrNoData is returned for payloads without report data.
var ErrNoData = errors.New("render payload has no data")

// Row is one rendered card line.
type Row struct {
	Name      string
	Type      string
	UseCount  int
	WinRate   float64
	UsageRate float64
	Wins      int
}

// rows flattens the card list a render type draws. ok is false for an
// unknown render type.
func rows(payload report.RenderPayload) (title string, out []Row, ok bool, err error) {
	data := payload.GCGData
	if data == nil {
		return "", nil, false, ErrNoData
	}

	switch payload.RenderType {
	case report.RenderTypeAvatar:
		out = make([]Row, 0, len(data.AvatarCardList))
		for _, c := range data.AvatarCardList {
			out = append(out, Row{
				Name:      c.CardName,
				UseCount:  c.UseCount,
				Wins:      c.Proficiency,
				WinRate:   c.WinRate,
				UsageRate: c.UsageRate,
			})
		}
		title = fmt.Sprintf("%s (UID %s) character cards: %d rounds, %.3f%% win rate",
			data.Nickname, data.UID, data.TotalRound, data.WinRate)
		return title, out, true, nil

	case report.RenderTypeAction:
		out = make([]Row, 0, len(data.ActionCardList))
		for _, c := range data.ActionCardList {
			out = append(out, Row{
				Name:      c.CardName,
				Type:      c.CardType,
				UseCount:  c.UseCount,
				UsageRate: c.UsageRate,
			})
		}
		title = fmt.Sprintf("%s (UID %s) action cards: %d/%d collected",
			data.Nickname, data.UID, data.ActionCardNumGained, data.ActionCardNumTotal)
		return title, out, true, nil

	default:
		return "", nil, false, nil
	}
}

// New returns the renderer named by kind ("html" or "png").
func New(kind string) (report.Renderer, error) {
	switch kind {
	case "html", "":
		return NewChartRenderer(DefaultChartConfig()), nil
	case "png":
		return NewTableRenderer(DefaultTableConfig()), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", kind)
	}
}
