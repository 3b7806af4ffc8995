package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
)

type replaySide struct {
	Name       string `json:"name"`
	IsOverflow bool   `json:"is_overflow"`
}

type rawReplay struct {
	GameID    json.RawMessage `json:"game_id"`
	MatchType string          `json:"match_type"`
	IsWin     bool            `json:"is_win"`
	Self      *replaySide     `json:"self"`
	Opposite  *replaySide     `json:"opposite"`
}

// ExtractReplays pulls match summaries out of the profile's replay list.
// Extraction is best effort: a list that is not an array yields no
// summaries, the first malformed entry stops it, the failure is logged and
// the summaries extracted so far are returned. A limit <= 0 extracts every
// entry.
func ExtractReplays(list json.RawMessage, limit int, log *logger.Logger) []models.MatchSummary {
	raw, err := replayEntries(list)
	if err != nil {
		if log != nil {
			log.Warn("replay list ignored", "error", err)
		}
		return []models.MatchSummary{}
	}

	if limit <= 0 || limit > len(raw) {
		limit = len(raw)
	}

	replays := make([]models.MatchSummary, 0, limit)
	for i := 0; i < limit; i++ {
		summary, err := extractReplay(raw[i])
		if err != nil {
			if log != nil {
				log.Warn("replay extraction stopped", "index", i, "extracted", len(replays), "error", err)
			}
			break
		}
		replays = append(replays, summary)
	}
	return replays
}

// replayEntries splits the replay list into entries. Absent and null lists
// are empty.
func replayEntries(list json.RawMessage) ([]json.RawMessage, error) {
	list = bytes.TrimSpace(list)
	if len(list) == 0 || bytes.Equal(list, []byte("null")) {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(list, &entries); err != nil {
		return nil, fmt.Errorf("decode replay list: %w", err)
	}
	return entries, nil
}

func extractReplay(entry json.RawMessage) (models.MatchSummary, error) {
	var r rawReplay
	if err := json.Unmarshal(entry, &r); err != nil {
		return models.MatchSummary{}, fmt.Errorf("decode replay: %w", err)
	}
	if r.Self == nil {
		return models.MatchSummary{}, errors.New("replay has no self side")
	}
	if r.Opposite == nil {
		return models.MatchSummary{}, errors.New("replay has no opposite side")
	}

	return models.MatchSummary{
		GameID:           gameID(r.GameID),
		MatchType:        r.MatchType,
		IsWin:            r.IsWin,
		OpponentName:     r.Opposite.Name,
		SelfOverflow:     r.Self.IsOverflow,
		OpponentOverflow: r.Opposite.IsOverflow,
	}, nil
}

// gameID accepts both string and numeric ids.
func gameID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}
