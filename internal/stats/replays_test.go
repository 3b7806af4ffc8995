package stats

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
)

func rawReplays(entries ...string) json.RawMessage {
	if entries == nil {
		return nil
	}
	return json.RawMessage("[" + strings.Join(entries, ",") + "]")
}

const (
	replayWin  = `{"game_id":"9001","match_type":"Friendly","is_win":true,"self":{"is_overflow":false},"opposite":{"name":"Traveler","is_overflow":true}}`
	replayLoss = `{"game_id":9002,"match_type":"Ranked","is_win":false,"self":{"is_overflow":true},"opposite":{"name":"Paimon","is_overflow":false}}`
)

func TestExtractReplays(t *testing.T) {
	replays := ExtractReplays(rawReplays(replayWin, replayLoss), 0, logger.Nop())

	assert.Equal(t, []models.MatchSummary{
		{GameID: "9001", MatchType: "Friendly", IsWin: true, OpponentName: "Traveler", OpponentOverflow: true},
		{GameID: "9002", MatchType: "Ranked", OpponentName: "Paimon", SelfOverflow: true},
	}, replays)
}

func TestExtractReplays_Limit(t *testing.T) {
	replays := ExtractReplays(rawReplays(replayWin, replayLoss, replayWin), 2, logger.Nop())
	require.Len(t, replays, 2)
	assert.Equal(t, "9002", replays[1].GameID)
}

func TestExtractReplays_PartialOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		entries json.RawMessage
		want    int
	}{
		{"missing opposite", rawReplays(replayWin, `{"game_id":"1","self":{"is_overflow":false}}`, replayLoss), 1},
		{"missing self", rawReplays(`{"game_id":"1","opposite":{"name":"x"}}`, replayWin), 0},
		{"not an object", rawReplays(replayWin, replayLoss, `[1,2]`), 2},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replays := ExtractReplays(tt.entries, 0, logger.Nop())
			assert.NotNil(t, replays)
			assert.Len(t, replays, tt.want)
		})
	}
}

func TestExtractReplays_NilLogger(t *testing.T) {
	assert.Empty(t, ExtractReplays(rawReplays(`null`), 0, nil))
}

func TestExtractReplays_ListNotAnArray(t *testing.T) {
	tests := map[string]string{
		"object":       `{"oops":1}`,
		"empty object": `{}`,
		"string":       `"replays"`,
		"number":       `3`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			replays := ExtractReplays(json.RawMessage(body), 0, logger.Nop())
			assert.NotNil(t, replays)
			assert.Empty(t, replays)
		})
	}
}

func TestExtractReplays_NullList(t *testing.T) {
	replays := ExtractReplays(json.RawMessage(`null`), 0, logger.Nop())
	assert.NotNil(t, replays)
	assert.Empty(t, replays)
}
