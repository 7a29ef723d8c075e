package docdb

import (
	"encoding/json"
	"fmt"

	"github.com/maruel/ksid"
)

// ID identifies a document within a collection.
//
// IDs are k-sortable 64-bit values generated by github.com/maruel/ksid. The
// zero value is [Sentinel].
type ID uint64

// Sentinel marks a tombstoned or invalid document. No live document may use it.
const Sentinel ID = 0

// NewID generates a new, non-zero, time-sortable ID.
// IDs are monotonically increasing within a process.
func NewID() ID {
	return ID(ksid.NewID())
}

// ParseID parses the textual form returned by [ID.String].
func ParseID(s string) (ID, error) {
	if s == "" {
		return Sentinel, nil
	}
	id, err := ksid.Parse(s)
	if err != nil {
		return Sentinel, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(id), nil
}

// String returns the compact, lexicographically sortable encoding.
func (id ID) String() string {
	return ksid.ID(id).String()
}

// IsZero returns true for the sentinel.
// This is useful for omitzero JSON tags.
func (id ID) IsZero() bool {
	return id == Sentinel
}

// MarshalJSON implements json.Marshaler.
// The sentinel is marshaled as an empty string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == Sentinel {
		return json.Marshal("")
	}
	return json.Marshal(id.String())
}

// UnmarshalJSON implements json.Unmarshaler.
// Empty strings are unmarshaled as the sentinel.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
