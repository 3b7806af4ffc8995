package stats

import (
	"fmt"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
)

// CalculateStreaks calculates win/loss streak statistics from recent matches.
// The provider lists replays newest first, so the slice is walked backwards.
func CalculateStreaks(replays []models.MatchSummary) models.StreakStats {
	var stats models.StreakStats
	currentWinStreak := 0
	currentLossStreak := 0

	for i := len(replays) - 1; i >= 0; i-- {
		if replays[i].IsWin {
			currentWinStreak++
			currentLossStreak = 0

			if currentWinStreak > stats.LongestWinStreak {
				stats.LongestWinStreak = currentWinStreak
			}
			continue
		}

		currentLossStreak++
		currentWinStreak = 0

		if currentLossStreak > stats.LongestLossStreak {
			stats.LongestLossStreak = currentLossStreak
		}
	}

	// Positive for wins, negative for losses
	if currentWinStreak > 0 {
		stats.CurrentStreak = currentWinStreak
	} else if currentLossStreak > 0 {
		stats.CurrentStreak = -currentLossStreak
	}

	return stats
}

// FormatCurrentStreak returns a human-readable string for the current streak.
func FormatCurrentStreak(streak int) string {
	if streak == 0 {
		return "No active streak"
	}
	if streak > 0 {
		if streak == 1 {
			return "1 win streak"
		}
		return fmt.Sprintf("%d win streak", streak)
	}
	absStreak := -streak
	if absStreak == 1 {
		return "1 loss streak"
	}
	return fmt.Sprintf("%d loss streak", absStreak)
}
