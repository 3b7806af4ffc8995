package report

import (
	"fmt"
	"strings"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/stats"
)

// Reply texts.
const (
	msgFetching      = "Fetching data, please wait..."
	msgNoCards       = "You have not obtained any character cards yet, nothing to query."
	msgEmptyCardList = "Card data is empty."
	msgAnomaly       = "Data anomaly detected, please contact the maintainer."
	msgRendering     = "Rendering image, please wait..."
)

func statusText(tip string) string {
	if tip == "" {
		return msgFetching
	}
	return msgFetching + "\n" + tip
}

// formatHeader renders the summary shared by both output modes.
func formatHeader(uid, nickname string, totals models.AggregateTotals, winRate float64,
	delta models.ScalarDelta, streak models.StreakStats, replays []models.MatchSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "UID: %s, Nickname: %s", uid, nickname)
	fmt.Fprintf(&b, "\nTotal rounds: %d, Win rate: %.3f%%", totals.TotalRound, winRate)
	fmt.Fprintf(&b, "\nSince last query: rounds %s, win rate %s%%",
		signedInt(delta.TotalRoundChange), signedFloat(delta.WinRateChange))

	if len(replays) > 0 {
		fmt.Fprintf(&b, "\nRecent form: %s", stats.FormatCurrentStreak(streak.CurrentStreak))
		b.WriteString("\n--------")
		for _, r := range replays {
			result := "Loss"
			if r.IsWin {
				result = "Win"
			}
			fmt.Fprintf(&b, "\n%s %s %s", r.MatchType, r.OpponentName, result)
		}
	}
	return b.String()
}

// formatChanges renders one line per changed card.
func formatChanges(changes []models.ChangeRecord) string {
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		prefix := ""
		if c.IsNew {
			prefix = "[New] "
		}
		lines = append(lines, fmt.Sprintf("%s%s: %dW %dL proficiency %d",
			prefix, c.CardName, c.ProficiencyChange, c.Losses(), c.Proficiency))
	}
	return strings.Join(lines, "\n")
}

func signedInt(v int) string {
	if v < 0 {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("+%d", v)
}

func signedFloat(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	if strings.HasPrefix(s, "-") {
		if s == "-0.000" {
			return "+0.000"
		}
		return s
	}
	return "+" + s
}
