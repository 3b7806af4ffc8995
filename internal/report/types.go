// Package report builds card statistics reports: it fetches the player's
// records, normalizes them, diffs them against the stored snapshot and
// decides between a text delta and a full rendered report.
package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/provider"
)

// Status is the outcome of a report request.
type Status string

const (
	StatusOK            Status = "ok"
	StatusUnavailable   Status = "unavailable"
	StatusNoCards       Status = "no_cards"
	StatusEmptyCardList Status = "empty_card_list"
)

// Mode is the output form of a successful report.
type Mode string

const (
	ModeDelta Mode = "delta"
	ModeFull  Mode = "full"
)

// Render types of the two full-report images.
const (
	RenderTypeAvatar = "avatar"
	RenderTypeAction = "action"
)

// TemplateName is the template both render payloads are rendered with.
const TemplateName = "gcg/index"

// Provider fetches raw resources. A nil payload with a nil error means the
// provider had no data.
type Provider interface {
	Fetch(ctx context.Context, kind provider.ResourceKind, user models.UserContext) (json.RawMessage, error)
}

// Renderer turns a payload into an image. A nil result means no image.
type Renderer interface {
	Render(ctx context.Context, template string, payload RenderPayload) ([]byte, error)
}

// ReplySink delivers messages back to the requesting player.
type ReplySink interface {
	Send(ctx context.Context, msg Message) error
}

// SnapshotStore persists per-user snapshots.
type SnapshotStore interface {
	ScalarTotals(ctx context.Context, uid string) (models.ScalarTotals, bool, error)
	SetScalarTotals(ctx context.Context, uid string, totals models.ScalarTotals) error
	CardSnapshot(ctx context.Context, uid string) ([]models.NormalizedCard, bool, error)
	SetCardSnapshot(ctx context.Context, uid string, cards []models.NormalizedCard) error
}

// Message is a reply to the player. Recall asks the transport to withdraw
// the message after the given duration; zero keeps it.
type Message struct {
	UID    string        `json:"uid"`
	Text   string        `json:"text"`
	Quote  bool          `json:"quote"`
	Recall time.Duration `json:"recall,omitempty"`
}

// GCGData is the data shared by both full-report images.
type GCGData struct {
	UID                 string                  `json:"uid"`
	Level               int                     `json:"level"`
	Nickname            string                  `json:"nickname"`
	AvatarCardNumGained int                     `json:"avatar_card_num_gained"`
	AvatarCardNumTotal  int                     `json:"avatar_card_num_total"`
	ActionCardNumGained int                     `json:"action_card_num_gained"`
	ActionCardNumTotal  int                     `json:"action_card_num_total"`
	TotalRound          int                     `json:"total_round"`
	TotalWinRound       int                     `json:"total_win_round"`
	WinRate             float64                 `json:"win_rate"`
	AvatarCardList      []models.NormalizedCard `json:"avatar_card_list"`
	ActionCardList      []models.ActionCardStat `json:"action_card_list"`
	Replays             []models.MatchSummary   `json:"replays"`
}

// RenderPayload is handed to the Renderer for one image.
type RenderPayload struct {
	UID            string   `json:"uid"`
	SaveID         string   `json:"saveId"`
	RenderType     string   `json:"renderType"`
	Quality        int      `json:"quality"`
	OmitBackground bool     `json:"omitBackground"`
	GCGData        *GCGData `json:"gcgData"`
}

// Report is the outcome of GetReport.
type Report struct {
	ID          string                 `json:"id"`
	UID         string                 `json:"uid"`
	Status      Status                 `json:"status"`
	Mode        Mode                   `json:"mode,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Totals      models.AggregateTotals `json:"totals"`
	WinRate     float64                `json:"win_rate"`
	ScalarDelta models.ScalarDelta     `json:"scalar_delta"`
	Changes     []models.ChangeRecord  `json:"changes,omitempty"`
	Replays     []models.MatchSummary  `json:"replays,omitempty"`
	Streak      models.StreakStats     `json:"streak"`
	Avatar      *RenderPayload         `json:"avatar_render,omitempty"`
	Action      *RenderPayload         `json:"action_render,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}
