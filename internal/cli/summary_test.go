package cli

import (
	"testing"

	"github.com/Veraticus/trsync/internal/engine"
	"github.com/Veraticus/trsync/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderRunSummary(t *testing.T) {
	tests := []struct {
		result   *engine.RunResult
		name     string
		expected []string
		absent   []string
	}{
		{
			name: "resumed run",
			result: &engine.RunResult{
				MarkerBefore: "t5",
				MarkerAfter:  "t10",
				MarkerFound:  true,
				Pushed:       make([]engine.Pushed, 5),
				Filtered:     engine.FilterStats{Total: 12, Kept: 10, Declined: 2},
			},
			expected: []string{"Sync complete", "Pushed: 5", "t5 → t10", "declined 2"},
			absent:   []string{"First run", "Dry run"},
		},
		{
			name: "first run",
			result: &engine.RunResult{
				MarkerAfter:  "t3",
				Bootstrapped: true,
				Filtered:     engine.FilterStats{Total: 3, Kept: 3},
			},
			expected: []string{"First run", "(none) → t3", "Pushed: 0"},
			absent:   []string{"skipped"},
		},
		{
			name: "lost marker",
			result: &engine.RunResult{
				MarkerBefore: "gone",
				MarkerAfter:  "t3",
				Bootstrapped: true,
			},
			expected: []string{"Marker gone was not in the feed"},
		},
		{
			name: "nothing new",
			result: &engine.RunResult{
				MarkerBefore: "t3",
				MarkerAfter:  "t3",
				MarkerFound:  true,
			},
			expected: []string{"t3 (unchanged)"},
		},
		{
			name: "dry run",
			result: &engine.RunResult{
				MarkerBefore: "t1",
				MarkerAfter:  "t2",
				DryRun:       true,
				Planned:      make([]model.ClassifiedTransaction, 1),
			},
			expected: []string{"Dry run", "Would push: 1", "Marker (not written):"},
			absent:   []string{"Sync complete"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderRunSummary(tt.result)
			for _, want := range tt.expected {
				assert.Contains(t, out, want)
			}
			for _, notWant := range tt.absent {
				assert.NotContains(t, out, notWant)
			}
		})
	}
}

func TestRenderPlan(t *testing.T) {
	assert.Empty(t, RenderPlan(nil))

	out := RenderPlan([]model.ClassifiedTransaction{{
		Date:        "2023-11-14",
		Kind:        model.KindWithdrawal,
		Amount:      decimal.RequireFromString("-12.5"),
		Currency:    "EUR",
		Source:      model.ByID("1"),
		Destination: model.ByName("Shop"),
		Category:    "Groceries",
	}})

	for _, want := range []string{"Date", "2023-11-14", "withdrawal", "12.50 EUR", "Shop", "Groceries"} {
		assert.Contains(t, out, want)
	}
}
