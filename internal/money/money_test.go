package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGrossNetRoundTrip(t *testing.T) {
	net := dec("100")
	rate := dec("19")

	gross := GrossOf(net, rate)
	assert.True(t, dec("119").Equal(gross), "gross = %s", gross)

	back := NetOf(gross, rate)
	assert.True(t, net.Equal(back), "net round trip = %s", back)
}

func TestVATOf(t *testing.T) {
	assert.True(t, dec("19").Equal(VATOf(dec("100"), dec("19"))))
	assert.True(t, dec("7").Equal(VATOf(dec("100"), dec("7"))))
	assert.True(t, VATOf(dec("100"), decimal.Zero).IsZero())
}

func TestDiscountOf(t *testing.T) {
	assert.True(t, dec("10").Equal(DiscountOf(dec("100"), dec("10"))))
	assert.True(t, DiscountOf(dec("100"), decimal.Zero).IsZero())
}

// Aggregating many third-of-a-cent values must not drift: rounding happens
// once at presentation, not per addend.
func TestAggregationKeepsPrecision(t *testing.T) {
	third := dec("1").Div(dec("3"))
	sum := decimal.Zero
	for i := 0; i < 300; i++ {
		sum = sum.Add(third)
	}
	assert.True(t, dec("100").Equal(Round2(sum)), "sum = %s", sum)
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "1.01", Round2(dec("1.005")).StringFixed(2))
	assert.Equal(t, "-1.01", Round2(dec("-1.005")).StringFixed(2))
	assert.Equal(t, "1.00", Round2(dec("1.004")).StringFixed(2))
}
