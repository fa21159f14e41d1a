package engine

import (
	"sort"
	"strings"

	"github.com/Veraticus/trsync/internal/model"
)

// FilterStats counts the feed entries dropped before the resume scan.
type FilterStats struct {
	Total       int
	Kept        int
	Currency    int
	VaultInflow int
	Declined    int
}

// Dropped returns the number of entries removed by any filter.
func (s FilterStats) Dropped() int {
	return s.Currency + s.VaultInflow + s.Declined
}

// prepare filters the feed and orders it by creation time. Entries with
// equal timestamps keep their feed order.
func prepare(feed []model.RawTransaction, currency string) ([]model.RawTransaction, FilterStats) {
	stats := FilterStats{Total: len(feed)}
	kept := make([]model.RawTransaction, 0, len(feed))

	for _, raw := range feed {
		switch {
		case currency != "" && !strings.EqualFold(raw.CurrencyCode(), currency):
			stats.Currency++
		case raw.IsVault() && !raw.RealAmount().IsNegative():
			// Money moving into the vault shows up again as the paired withdrawal.
			stats.VaultInflow++
		case raw.IsDeclined():
			stats.Declined++
		default:
			kept = append(kept, raw)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedDate < kept[j].CreatedDate
	})

	stats.Kept = len(kept)
	return kept, stats
}

// scan splits the ordered feed at the marker. pending holds everything after
// the marker; when the marker is empty or never found, found is false and
// pending is empty. last is the final entry seen.
func scan(ordered []model.RawTransaction, marker string) (pending []model.RawTransaction, last string, found bool) {
	for i, raw := range ordered {
		last = raw.LegID
		if marker != "" && raw.LegID == marker {
			found = true
			pending = ordered[i+1:]
			if len(pending) > 0 {
				last = pending[len(pending)-1].LegID
			}
			return pending, last, found
		}
	}
	return nil, last, false
}
