package errorutil

import (
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
)

func TestFormatCoordinates(t *testing.T) {
	var nilCoords *Coordinates
	tst.AssertEqual(t, nilCoords.FormatCoordinates(), "", "nil coordinates")
	tst.AssertEqual(t, (&Coordinates{}).String(), "", "empty coordinates")
	tst.AssertEqual(t, At(3, 128).String(), "file=3 at=128", "file offset")
	tst.AssertEqual(t, ForTx(9).String(), "tx=9", "tx only")

	c := At(1, 0)
	tx := uint64(42)
	c.TxID = &tx
	tst.AssertEqual(t, c.String(), "file=1 at=0 tx=42", "all fields")
}
