package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
)

// DataRegressionError reports that the provider returned fewer character
// cards than the stored snapshot holds. Cards are never un-owned, so a
// shrinking list means the provider dropped data and every incremental
// comparison against it would be wrong.
type DataRegressionError struct {
	Previous int
	Current  int
}

func (e *DataRegressionError) Error() string {
	return fmt.Sprintf("card count regressed from %d to %d", e.Previous, e.Current)
}

// IsDataRegression reports whether err is or wraps a DataRegressionError.
func IsDataRegression(err error) bool {
	var regression *DataRegressionError
	return errors.As(err, &regression)
}

// DiffCards compares two card snapshots and returns one change record per
// new or modified card, sorted by proficiency change, highest first.
// Decreases are reported as negative deltas.
func DiffCards(previous, current []models.NormalizedCard) ([]models.ChangeRecord, error) {
	if len(current) < len(previous) {
		return nil, &DataRegressionError{Previous: len(previous), Current: len(current)}
	}

	byID := make(map[int]models.NormalizedCard, len(previous))
	for _, card := range previous {
		byID[card.CardID] = card
	}

	changes := make([]models.ChangeRecord, 0)
	for _, card := range current {
		old, ok := byID[card.CardID]
		if !ok {
			changes = append(changes, models.ChangeRecord{
				CardName:          card.CardName,
				UseCountChange:    card.UseCount,
				ProficiencyChange: card.Proficiency,
				Proficiency:       card.Proficiency,
				IsNew:             true,
			})
			continue
		}
		if old.Proficiency == card.Proficiency && old.UseCount == card.UseCount {
			continue
		}
		changes = append(changes, models.ChangeRecord{
			CardName:          card.CardName,
			UseCountChange:    card.UseCount - old.UseCount,
			ProficiencyChange: card.Proficiency - old.Proficiency,
			Proficiency:       card.Proficiency,
		})
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ProficiencyChange > changes[j].ProficiencyChange
	})

	return changes, nil
}

// SnapshotReader loads the last stored card snapshot for a user.
type SnapshotReader interface {
	CardSnapshot(ctx context.Context, uid string) ([]models.NormalizedCard, bool, error)
}

// DeltaResult is the outcome of comparing against the stored snapshot.
// Baseline is false when no snapshot was stored; Changes is then nil and
// the caller should produce a full report.
type DeltaResult struct {
	Baseline bool
	Changes  []models.ChangeRecord
}

// DeltaEngine diffs freshly normalized cards against the stored snapshot.
type DeltaEngine struct {
	snapshots SnapshotReader
}

// NewDeltaEngine creates a delta engine reading from the given snapshots.
func NewDeltaEngine(snapshots SnapshotReader) *DeltaEngine {
	return &DeltaEngine{snapshots: snapshots}
}

// Compute reads the stored snapshot for uid and diffs cards against it.
// It never writes; persisting the new snapshot is the caller's decision.
func (e *DeltaEngine) Compute(ctx context.Context, uid string, cards []models.NormalizedCard) (DeltaResult, error) {
	previous, ok, err := e.snapshots.CardSnapshot(ctx, uid)
	if err != nil {
		return DeltaResult{}, fmt.Errorf("load card snapshot: %w", err)
	}
	if !ok {
		return DeltaResult{}, nil
	}

	changes, err := DiffCards(previous, cards)
	if err != nil {
		return DeltaResult{}, err
	}
	return DeltaResult{Baseline: true, Changes: changes}, nil
}
