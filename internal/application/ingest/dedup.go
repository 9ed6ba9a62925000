package ingestapp

import (
	"github.com/dplus/backend/internal/domain/order"
)

// Deduplicator partitions incoming orders against the store's dedup
// keys. The store always wins against a batch, and within a batch the
// first occurrence in file order wins.
type Deduplicator struct{}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// PartitionResult splits a batch into fresh orders and a duplicate count.
type PartitionResult struct {
	Fresh      []order.Order
	Duplicates int
}

// Partition returns the orders whose key is new to both the store and
// the batch so far. Everything else counts as a duplicate.
func (d *Deduplicator) Partition(batch []*order.Order, existing map[order.Key]struct{}) PartitionResult {
	res := PartitionResult{Fresh: make([]order.Order, 0, len(batch))}
	seen := make(map[order.Key]struct{}, len(batch))

	for _, o := range batch {
		key := o.Key()
		if _, inStore := existing[key]; inStore {
			res.Duplicates++
			continue
		}
		if _, inBatch := seen[key]; inBatch {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		res.Fresh = append(res.Fresh, *o)
	}
	return res
}
