// Package merge validates whether strategy runs can be combined into one
// contiguous run: their date ranges must not overlap and their parameters
// should agree with the reference (first) run.
package merge

import (
	"fmt"
	"sort"
	"time"

	"github.com/nullptr0807/runhub/internal/core"
)

// DiffKind classifies a parameter difference against the reference run.
type DiffKind string

const (
	DiffMissing DiffKind = "missing" // present on reference, absent on run
	DiffExtra   DiffKind = "extra"   // absent on reference, present on run
	DiffChanged DiffKind = "changed" // present on both with different values
)

// Overlap reports a pair of runs whose date ranges intersect.
type Overlap struct {
	RunA   string    `json:"run_a"`
	RunB   string    `json:"run_b"`
	StartA time.Time `json:"start_a"`
	EndA   time.Time `json:"end_a"`
	StartB time.Time `json:"start_b"`
	EndB   time.Time `json:"end_b"`
}

// ParameterDiff reports one parameter difference between a run and the
// reference run.
type ParameterDiff struct {
	RunID          string   `json:"run_id"`
	Name           string   `json:"name"`
	Kind           DiffKind `json:"kind"`
	ReferenceValue string   `json:"reference_value,omitempty"`
	Value          string   `json:"value,omitempty"`
}

// Report is the outcome of validating a merge candidate set.
type Report struct {
	StrategyID     uint            `json:"strategy_id"`
	RunIDs         []string        `json:"run_ids"`
	ReferenceRun   string          `json:"reference_run"`
	Overlaps       []Overlap       `json:"overlaps"`
	ParameterDiffs []ParameterDiff `json:"parameter_diffs"`
	Mergeable      bool            `json:"mergeable"` // no overlapping pair
	Clean          bool            `json:"clean"`     // mergeable and parameters agree
}

// Validate checks a candidate set. The first run is the reference for
// parameter comparison; params maps run id to that run's parameters.
func Validate(runs []core.Run, params map[string][]core.Parameter) (*Report, error) {
	if len(runs) < 2 {
		return nil, core.WrapError(core.ErrValidation,
			fmt.Errorf("merge needs at least 2 runs, got %d", len(runs)))
	}

	strategyID := runs[0].StrategyID
	for _, r := range runs[1:] {
		if r.StrategyID != strategyID {
			return nil, core.WrapError(core.ErrValidation,
				fmt.Errorf("run %s belongs to a different strategy", r.ID))
		}
	}

	report := &Report{
		StrategyID:   strategyID,
		ReferenceRun: runs[0].ID,
	}
	for _, r := range runs {
		report.RunIDs = append(report.RunIDs, r.ID)
	}

	for i := 0; i < len(runs); i++ {
		for j := i + 1; j < len(runs); j++ {
			if runs[i].Overlaps(runs[j]) {
				report.Overlaps = append(report.Overlaps, Overlap{
					RunA:   runs[i].ID,
					RunB:   runs[j].ID,
					StartA: runs[i].PeriodStart,
					EndA:   runs[i].PeriodEnd,
					StartB: runs[j].PeriodStart,
					EndB:   runs[j].PeriodEnd,
				})
			}
		}
	}

	reference := paramMap(params[runs[0].ID])
	for _, r := range runs[1:] {
		report.ParameterDiffs = append(report.ParameterDiffs,
			diffParams(r.ID, reference, paramMap(params[r.ID]))...)
	}

	report.Mergeable = len(report.Overlaps) == 0
	report.Clean = report.Mergeable && len(report.ParameterDiffs) == 0

	return report, nil
}

// CombineDaily unions the daily series of non-overlapping runs, sorted by
// date. Callers must have validated overlap first.
func CombineDaily(series ...[]core.DailyPnL) []core.DailyPnL {
	var combined []core.DailyPnL
	for _, s := range series {
		combined = append(combined, s...)
	}
	sort.Slice(combined, func(i, j int) bool {
		return combined[i].Date.Before(combined[j].Date)
	})
	return combined
}

func paramMap(params []core.Parameter) map[string]string {
	m := make(map[string]string, len(params))
	for _, p := range params {
		m[p.Name] = p.Value
	}
	return m
}

func diffParams(runID string, reference, actual map[string]string) []ParameterDiff {
	var diffs []ParameterDiff

	for name, refVal := range reference {
		val, ok := actual[name]
		switch {
		case !ok:
			diffs = append(diffs, ParameterDiff{
				RunID: runID, Name: name, Kind: DiffMissing, ReferenceValue: refVal,
			})
		case val != refVal:
			diffs = append(diffs, ParameterDiff{
				RunID: runID, Name: name, Kind: DiffChanged, ReferenceValue: refVal, Value: val,
			})
		}
	}
	for name, val := range actual {
		if _, ok := reference[name]; !ok {
			diffs = append(diffs, ParameterDiff{
				RunID: runID, Name: name, Kind: DiffExtra, Value: val,
			})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Name < diffs[j].Name })
	return diffs
}
