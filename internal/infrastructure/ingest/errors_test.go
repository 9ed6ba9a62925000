package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCollection_Bounded(t *testing.T) {
	ec := NewErrorCollection(3)
	for i := 1; i <= 5; i++ {
		ec.Add(NewNumberError(i, "Quantity", "not a valid number", "abc"))
	}

	assert.Equal(t, 5, ec.TotalCount())
	assert.Len(t, ec.Errors(), 3)
	assert.True(t, ec.IsTruncated())
	assert.True(t, ec.HasErrors())
}

func TestErrorCollection_Merge(t *testing.T) {
	a := NewErrorCollection(10)
	a.Add(NewDateError(2, "Created Time", "not-a-date"))

	b := NewErrorCollection(10)
	b.Add(NewNumberError(3, "Quantity", "unparseable quantity", "abc"))
	b.Add(NewEmptyKeyError(4, "Order ID"))

	a.Merge(b)
	assert.Equal(t, 3, a.TotalCount())
	assert.Len(t, a.Errors(), 3)
	assert.False(t, a.IsTruncated())
}

func TestRowError_Error(t *testing.T) {
	e := NewNumberError(7, "Quantity", "not a valid number", "abc")
	assert.Equal(t, "row 7, column 'Quantity': not a valid number", e.Error())

	e = RowError{Row: 9, Message: "row malformed", Code: ErrCodeRowBadNumber}
	assert.Equal(t, "row 9: row malformed", e.Error())
}

func TestSchemaError_Error(t *testing.T) {
	err := &SchemaError{File: "orders.csv", Reason: "required columns missing from header", Missing: []string{"Created Time"}}
	assert.Contains(t, err.Error(), "orders.csv")
	assert.Contains(t, err.Error(), "Created Time")
}
