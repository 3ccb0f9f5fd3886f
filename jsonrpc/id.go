package jsonrpc

import (
	"bytes"
	"fmt"
	"strconv"
	"sync/atomic"
)

// idWidth is the number of decimal digits of the largest uint64.
const idWidth = 20

// ID identifies one outstanding request. On the wire it is a JSON string of
// exactly idWidth zero-padded digits, so the payload size never depends on the
// id value. The zero ID means "not assigned yet".
type ID uint64

func (id ID) String() string { return fmt.Sprintf("%0*d", idWidth, uint64(id)) }

func (id ID) IsZero() bool { return id == 0 }

func (id ID) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, idWidth+2)
	b = append(b, '"')
	b = append(b, id.String()...)
	return append(b, '"'), nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) != idWidth+2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("id must be a %d-digit string, got %s", idWidth, truncate(b, 64))
	}
	parsed, err := ParseID(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID parses the fixed-width textual form.
func ParseID(s string) (ID, error) {
	if len(s) != idWidth {
		return 0, fmt.Errorf("id must have %d digits, got %d", idWidth, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("id must be decimal digits, got %q", s)
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id out of range: %w", err)
	}
	return ID(v), nil
}

// IDGenerator hands out process-unique ids. The counter is monotonic, so ids
// never collide among outstanding calls. The zero value is ready to use.
type IDGenerator struct {
	last atomic.Uint64
}

// Next never returns the zero ID.
func (g *IDGenerator) Next() ID {
	return ID(g.last.Add(1))
}

var defaultIDs IDGenerator

// DefaultIDs returns the process-wide generator NewRequest draws from.
func DefaultIDs() *IDGenerator { return &defaultIDs }

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return append(bytes.Clone(b[:n]), "..."...)
}
