package ingestapp

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dplus/backend/internal/domain/order"
)

// Validator is the merge gate: it compares pre and post snapshots of the
// store inside the commit transaction and aborts anything that looks
// like data loss.
type Validator struct {
	tolerance decimal.Decimal
}

// NewValidator creates a validator with a relative data-loss tolerance
// (0.10 means a 10% shrink is still accepted).
func NewValidator(tolerance float64) *Validator {
	return &Validator{tolerance: decimal.NewFromFloat(tolerance)}
}

// ValidateMerge checks an incremental merge. The store may only grow:
// the row count must grow by exactly the number of inserted orders and
// revenue must not shrink beyond the tolerance.
func (v *Validator) ValidateMerge(pre, post order.Snapshot, added int) error {
	if post.Rows < pre.Rows {
		return order.NewDomainError(order.ErrCodeDataLossSuspected,
			fmt.Sprintf("store shrank during merge: %d rows before, %d after", pre.Rows, post.Rows))
	}
	if post.Rows != pre.Rows+int64(added) {
		return order.NewDomainError(order.ErrCodeIntegrityViolation,
			fmt.Sprintf("row count mismatch after merge: expected %d, got %d", pre.Rows+int64(added), post.Rows))
	}
	if v.revenueLoss(pre.Revenue, post.Revenue) {
		return order.NewDomainError(order.ErrCodeDataLossSuspected,
			fmt.Sprintf("revenue shrank beyond tolerance: %s before, %s after", pre.Revenue, post.Revenue))
	}
	return nil
}

// ValidateRebuild checks a full rebuild against the store it replaced.
// A rebuild may legitimately shrink the store (tightened denylist,
// removed source files) but not below the tolerance.
func (v *Validator) ValidateRebuild(pre, post order.Snapshot, expected int) error {
	if post.Rows != int64(expected) {
		return order.NewDomainError(order.ErrCodeIntegrityViolation,
			fmt.Sprintf("row count mismatch after rebuild: expected %d, got %d", expected, post.Rows))
	}
	if pre.Rows == 0 {
		return nil
	}
	floor := decimal.NewFromInt(pre.Rows).Mul(decimal.NewFromInt(1).Sub(v.tolerance))
	if decimal.NewFromInt(post.Rows).LessThan(floor) {
		return order.NewDomainError(order.ErrCodeDataLossSuspected,
			fmt.Sprintf("rebuild lost too many rows: %d before, %d after", pre.Rows, post.Rows))
	}
	return nil
}

// revenueLoss reports whether post revenue fell below pre revenue by
// more than the tolerance.
func (v *Validator) revenueLoss(pre, post decimal.Decimal) bool {
	if pre.LessThanOrEqual(decimal.Zero) {
		return false
	}
	floor := pre.Mul(decimal.NewFromInt(1).Sub(v.tolerance))
	return post.LessThan(floor)
}

// Finding is one diagnostic result of an integrity scan.
type Finding struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// IntegrityFindings turns raw store counters into named findings. An
// empty slice means the store is internally consistent.
func IntegrityFindings(c order.IntegrityCounts) []Finding {
	var findings []Finding
	add := func(count int64, code, format string) {
		if count > 0 {
			findings = append(findings, Finding{
				Code:    code,
				Message: fmt.Sprintf(format, count),
				Count:   count,
			})
		}
	}

	add(c.DuplicateKeys, order.ErrCodeIntegrityViolation, "%d rows share a dedup key with another row")
	add(c.EmptyOrderIDs, order.ErrCodeIntegrityViolation, "%d rows have an empty order id")
	add(c.MissingDates, order.ErrCodeIntegrityViolation, "%d rows have no date")
	add(c.OutOfRangeDates, order.ErrCodeIntegrityViolation, "%d rows have a date outside the sane range")
	add(c.MissingProductName, order.ErrCodeIntegrityViolation, "%d rows have no product name")
	add(c.NegativeRevenue, order.ErrCodeIntegrityViolation, "%d rows carry negative revenue")
	return findings
}
