package errorutil

import (
	"fmt"
	"strings"
)

// Coordinates locates an error inside the journal: which file, which byte
// offset and which transaction. Nil fields are omitted when formatting.
type Coordinates struct {
	FileID *uint64
	Offset *int64
	TxID   *uint64
}

// At builds Coordinates for a file offset.
func At(fileID uint64, offset int64) *Coordinates {
	return &Coordinates{FileID: &fileID, Offset: &offset}
}

// ForTx builds Coordinates for a transaction.
func ForTx(txID uint64) *Coordinates {
	return &Coordinates{TxID: &txID}
}

// FormatCoordinates renders the non-nil fields as "file=X at=Y tx=Z".
func (c *Coordinates) FormatCoordinates() string {
	if c == nil {
		return ""
	}

	parts := make([]string, 0, 3)
	if c.FileID != nil {
		parts = append(parts, fmt.Sprintf("file=%d", *c.FileID))
	}
	if c.Offset != nil {
		parts = append(parts, fmt.Sprintf("at=%d", *c.Offset))
	}
	if c.TxID != nil {
		parts = append(parts, fmt.Sprintf("tx=%d", *c.TxID))
	}
	return strings.Join(parts, " ")
}

func (c *Coordinates) String() string {
	return c.FormatCoordinates()
}
