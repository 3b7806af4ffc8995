package stats

import (
	"math"
	"sort"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
)

// cardsPerRound is the number of character cards fielded in one round.
const cardsPerRound = 3

// Action card display labels.
const (
	ActionTypeEquipment = "Equipment"
	ActionTypeSupport   = "Support"
	ActionTypeEvent     = "Event"
	ActionTypeUnknown   = "Unknown"
)

// CharacterResult is the outcome of normalizing the character card list.
type CharacterResult struct {
	Totals models.AggregateTotals
	Cards  []models.NormalizedCard
}

// NormalizeCharacterCards cleanses raw character card records and derives
// per-card rates and round totals.
//
// A record whose proficiency exceeds its use count is corrected before
// anything else: some event matches increment proficiency without counting
// the use. Records that were never used are dropped. Totals are divided by
// the cards fielded per round and rounded up, since rounds played with
// unowned cards are lost upstream and the sums are not always divisible.
// The returned cards are sorted by proficiency, highest first.
func NormalizeCharacterCards(raw []models.RawCardRecord) CharacterResult {
	var winSum, useSum int
	cards := make([]models.NormalizedCard, 0, len(raw))

	for _, rec := range raw {
		useCount := rec.UseCount
		if rec.Proficiency > useCount {
			useCount = rec.Proficiency
		}
		if useCount == 0 {
			continue
		}

		winSum += rec.Proficiency
		useSum += useCount

		cards = append(cards, models.NormalizedCard{
			CardID:      rec.ID,
			CardName:    rec.Name,
			UseCount:    useCount,
			Proficiency: rec.Proficiency,
			CardNum:     rec.Num,
			WinRate:     Percent(rec.Proficiency, useCount),
		})
	}

	totals := models.AggregateTotals{
		TotalRound:    ceilDiv(useSum, cardsPerRound),
		TotalWinRound: ceilDiv(winSum, cardsPerRound),
	}

	// Usage rate needs the final round count.
	for i := range cards {
		cards[i].UsageRate = Percent(cards[i].UseCount, totals.TotalRound)
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Proficiency > cards[j].Proficiency
	})

	return CharacterResult{Totals: totals, Cards: cards}
}

// WinRate returns the overall win rate percentage for the given totals.
func WinRate(totals models.AggregateTotals) float64 {
	if totals.TotalWinRound == 0 || totals.TotalRound == 0 {
		return 0
	}
	return float64(totals.TotalWinRound) / float64(totals.TotalRound) * 100
}

// NormalizeActionCards drops unused action cards, labels their type and
// computes each card's share of total action card usage. The returned cards
// are sorted by use count, highest first.
func NormalizeActionCards(raw []models.RawActionCardRecord) []models.ActionCardStat {
	totalUsage := 0
	cards := make([]models.ActionCardStat, 0, len(raw))

	for _, rec := range raw {
		totalUsage += rec.UseCount
		if rec.UseCount == 0 {
			continue
		}
		cards = append(cards, models.ActionCardStat{
			CardID:   rec.ID,
			CardName: rec.Name,
			CardType: ActionCardTypeLabel(rec.CardType),
			UseCount: rec.UseCount,
			CardNum:  rec.Num,
		})
	}

	for i := range cards {
		cards[i].UsageRate = Percent(cards[i].UseCount, totalUsage)
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].UseCount > cards[j].UseCount
	})

	return cards
}

// ActionCardTypeLabel maps a provider card type code to its display label.
func ActionCardTypeLabel(code string) string {
	switch code {
	case "CardTypeModify":
		return ActionTypeEquipment
	case "CardTypeAssist":
		return ActionTypeSupport
	case "CardTypeEvent":
		return ActionTypeEvent
	default:
		return ActionTypeUnknown
	}
}

// Percent returns part/whole*100 rounded to three decimals, or 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return Round3(float64(part) / float64(whole) * 100)
}

// Round3 rounds v to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func ceilDiv(sum, divisor int) int {
	if sum <= 0 {
		return 0
	}
	return (sum + divisor - 1) / divisor
}
