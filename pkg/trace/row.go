package trace

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/json"
)

// Datum is a single column value. It can be any JSON encodable value: int64, float64, string,
// bool, nil, or nested maps and slices of these. Numeric datums are compared by value.
type Datum = any

// Row is a record of a collection, or a key derived from one.
type Row []Datum

// KeyProjection is an ordered sequence of column indices. Order matters: [0,1] and [1,0] are
// different projections.
type KeyProjection []int

// Equal reports whether two projections select the same columns in the same order.
func (k KeyProjection) Equal(other KeyProjection) bool { return slices.Equal(k, other) }

// String renders the projection as "[0,1]". Distinct projections render differently.
func (k KeyProjection) String() string {
	parts := make([]string, len(k))
	for i, c := range k {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Clone returns a copy of the projection.
func (k KeyProjection) Clone() KeyProjection { return slices.Clone(k) }

// Project returns the columns of the row selected by the projection.
func (r Row) Project(keys KeyProjection) (Row, error) {
	key := make(Row, len(keys))
	for i, c := range keys {
		if c < 0 || c >= len(r) {
			return nil, fmt.Errorf("column %d of row with %d columns: %w", c, len(r), ErrColumnOutOfRange)
		}
		key[i] = r[c]
	}
	return key, nil
}

// encodeRow creates a deterministic JSON representation of a row. This defines row equality and
// the order of rows inside a batch: datums are equal if they encode to the same JSON, so numbers
// compare by value regardless of their Go type, e.g., int64(1) and float64(1) are the same datum.
func encodeRow(r Row) (string, error) {
	if len(r) == 0 {
		return "", nil
	}
	bytes, err := json.Marshal([]Datum(r))
	if err != nil {
		return "", newEncodingError("failed to marshal row to JSON", err)
	}
	return string(bytes), nil
}
