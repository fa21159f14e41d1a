package engine

import (
	"github.com/Veraticus/trsync/internal/model"
)

// Classifier resolves a raw feed entry into a routed ledger transaction.
type Classifier interface {
	Classify(raw model.RawTransaction) (model.ClassifiedTransaction, error)
}
