package protocol

import (
	"github.com/pkg/errors"
	. "github.com/robaho/fixed"
	"github.com/shopspring/decimal"
)

// Decimal5 is the TWIME price type, a mantissa with a fixed exponent of -5
type Decimal5 int64

const decimal5Exp = 5

var ErrPricePrecision = errors.New("price has more than 5 decimal places")

// NewDecimal5 converts exactly, returning ErrPricePrecision rather than rounding
func NewDecimal5(d decimal.Decimal) (Decimal5, error) {
	shifted := d.Shift(decimal5Exp)
	if !shifted.IsInteger() {
		return 0, errors.Wrap(ErrPricePrecision, d.String())
	}
	return Decimal5(shifted.IntPart()), nil
}

// Decimal5FromFixed goes through the decimal string form so no float rounding is involved
func Decimal5FromFixed(f Fixed) (Decimal5, error) {
	d, err := decimal.NewFromString(f.String())
	if err != nil {
		return 0, errors.Wrap(err, "invalid price")
	}
	return NewDecimal5(d)
}

func (d Decimal5) Decimal() decimal.Decimal {
	return decimal.New(int64(d), -decimal5Exp)
}

func (d Decimal5) Fixed() Fixed {
	return NewI(int64(d), decimal5Exp)
}

func (d Decimal5) String() string {
	return d.Decimal().String()
}
