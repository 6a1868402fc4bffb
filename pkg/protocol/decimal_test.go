package protocol

import (
	"testing"

	. "github.com/robaho/fixed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimal5(t *testing.T) {
	d, err := NewDecimal5(decimal.RequireFromString("123.45678"))
	require.NoError(t, err)
	assert.Equal(t, Decimal5(12345678), d)
	assert.Equal(t, "123.45678", d.String())

	_, err = NewDecimal5(decimal.RequireFromString("0.000001"))
	assert.ErrorIs(t, err, ErrPricePrecision)

	d, err = NewDecimal5(decimal.RequireFromString("-2.5"))
	require.NoError(t, err)
	assert.Equal(t, Decimal5(-250000), d)
}

func TestDecimal5Fixed(t *testing.T) {
	d, err := Decimal5FromFixed(NewS("100.25"))
	require.NoError(t, err)
	assert.Equal(t, Decimal5(10025000), d)
	assert.True(t, d.Fixed().Equal(NewS("100.25")))
}
