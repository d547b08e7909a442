package analysis

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrOutOfRange is returned for resistances outside the meter's characterized range.
var ErrOutOfRange = errors.New("resistance out of instrument range")

// accuracyBand is one row of the meter's resistance accuracy table:
// ±(percent of reading + digits of the last displayed place).
type accuracyBand struct {
	below   decimal.Decimal
	percent decimal.Decimal
	digits  int64
}

var accuracyTable = []accuracyBand{
	{decimal.NewFromInt(400), decimal.RequireFromString("0.8"), 6},
	{decimal.NewFromInt(4_000), decimal.RequireFromString("0.6"), 4},
	{decimal.NewFromInt(40_000), decimal.RequireFromString("0.6"), 4},
	{decimal.NewFromInt(400_000), decimal.RequireFromString("0.6"), 4},
	{decimal.NewFromInt(4_000_000), decimal.RequireFromString("1.0"), 4},
	{decimal.NewFromInt(40_000_000), decimal.RequireFromString("2.0"), 4},
}

var hundred = decimal.NewFromInt(100)

// ResistorUncertainty returns the meter accuracy, in Ohm, of a resistance
// reading. The last displayed digit is taken from r's precision, so "389.000"
// and "389" differ.
func ResistorUncertainty(r decimal.Decimal) (float64, error) {
	precision := int32(0)
	if e := r.Exponent(); e < 0 {
		precision = -e
	}
	digit := decimal.New(1, -precision)

	for _, band := range accuracyTable {
		if r.LessThan(band.below) {
			relative := r.Mul(band.percent).Div(hundred)
			return relative.Add(digit.Mul(decimal.NewFromInt(band.digits))).InexactFloat64(), nil
		}
	}
	return 0, fmt.Errorf("%w: %s Ohm", ErrOutOfRange, r)
}
