// Package models holds the card statistics data model shared by the
// normalizer, the snapshot store and the report orchestrator.
package models

import "encoding/json"

// UserContext identifies the player a report is generated for.
// The provider treats Server and Cookie as opaque credentials.
type UserContext struct {
	UID    string `json:"uid"`
	Server string `json:"server,omitempty"`
	Cookie string `json:"cookie,omitempty"`
}

// BasicInfo is the player's card-game profile.
type BasicInfo struct {
	Level               int             `json:"level"`
	Nickname            string          `json:"nickname"`
	AvatarCardNumGained int             `json:"avatar_card_num_gained"`
	AvatarCardNumTotal  int             `json:"avatar_card_num_total"`
	ActionCardNumGained int             `json:"action_card_num_gained"`
	ActionCardNumTotal  int             `json:"action_card_num_total"`
	Replays             json.RawMessage `json:"replays,omitempty"`
}

// RawCardRecord is a character card as reported by the provider.
// Proficiency is expected to be <= UseCount but the provider violates that
// after certain event matches.
type RawCardRecord struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Proficiency int    `json:"proficiency"` // Win-count proxy
	UseCount    int    `json:"use_count"`
	Num         int    `json:"num"` // Owned copies
}

// RawActionCardRecord is an action card as reported by the provider.
type RawActionCardRecord struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	CardType string `json:"card_type"` // CardTypeModify, CardTypeAssist, CardTypeEvent
	UseCount int    `json:"use_count"`
	Num      int    `json:"num"`
}

// NormalizedCard is a character card with derived rates.
// The JSON form is the persisted card snapshot format.
type NormalizedCard struct {
	CardID      int     `json:"card_id"`
	CardName    string  `json:"card_name"`
	UseCount    int     `json:"use_count"`
	Proficiency int     `json:"proficiency"`
	CardNum     int     `json:"card_num"`
	WinRate     float64 `json:"win_rate"`   // Percentage, 3 decimals
	UsageRate   float64 `json:"usage_rate"` // Percentage of total rounds, 3 decimals
}

// ActionCardStat is an action card with its usage share.
type ActionCardStat struct {
	CardID    int     `json:"card_id"`
	CardName  string  `json:"card_name"`
	CardType  string  `json:"card_type"` // Display label
	UseCount  int     `json:"use_count"`
	CardNum   int     `json:"card_num"`
	UsageRate float64 `json:"usage_rate"`
}

// AggregateTotals are the round counts derived from character card usage.
// Three character cards take part in every round.
type AggregateTotals struct {
	TotalRound    int `json:"total_round"`
	TotalWinRound int `json:"total_win_round"`
}

// ScalarTotals is the per-user scalar part of a snapshot.
type ScalarTotals struct {
	WinRate    float64 `json:"win_rate"`
	TotalRound int     `json:"total_round"`
}

// ScalarDelta is the change of the scalar totals since the previous query.
type ScalarDelta struct {
	WinRateChange    float64 `json:"win_rate_change"`
	TotalRoundChange int     `json:"total_round_change"`
	HasBaseline      bool    `json:"has_baseline"`
}

// ChangeRecord describes how one character card moved between two snapshots.
type ChangeRecord struct {
	CardName          string `json:"card_name"`
	UseCountChange    int    `json:"use_count_change"`
	ProficiencyChange int    `json:"proficiency_change"`
	Proficiency       int    `json:"proficiency"`
	IsNew             bool   `json:"is_new"`
}

// Losses returns the rounds played without a proficiency gain.
func (c ChangeRecord) Losses() int {
	return c.UseCountChange - c.ProficiencyChange
}

// MatchSummary is one entry of the recent match history.
type MatchSummary struct {
	GameID           string `json:"game_id"`
	MatchType        string `json:"match_type"`
	IsWin            bool   `json:"is_win"`
	OpponentName     string `json:"opponent_name"`
	SelfOverflow     bool   `json:"self_overflow"`
	OpponentOverflow bool   `json:"opponent_overflow"`
}

// StreakStats summarizes win/loss streaks over recent matches.
type StreakStats struct {
	CurrentStreak     int `json:"current_streak"` // Positive for wins, negative for losses
	LongestWinStreak  int `json:"longest_win_streak"`
	LongestLossStreak int `json:"longest_loss_streak"`
}
