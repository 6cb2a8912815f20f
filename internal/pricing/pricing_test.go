package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfEven(t *testing.T) {
	cases := []struct {
		num, den int64
		want     int64
	}{
		{10, 4, 2},  // 2.5 -> 2 (even)
		{14, 4, 4},  // 3.5 -> 4 (even)
		{7, 2, 4},   // 3.5 -> 4 (even)
		{9, 2, 4},   // 4.5 -> 4 (even)
		{1, 4, 0},   // 0.25 -> 0
		{3, 4, 1},   // 0.75 -> 1
		{100, 10, 10},
	}
	for _, c := range cases {
		got := RoundHalfEven(c.num, c.den)
		assert.Equal(t, c.want, got, "RoundHalfEven(%d, %d)", c.num, c.den)
	}
}

func TestMidPrice_NarrowSpreadAverages(t *testing.T) {
	yes, no := MidPrice(490_000, 510_000, 0, 500_000)
	assert.Equal(t, int64(500_000), yes)
	assert.Equal(t, Scale, yes+no)
}

func TestMidPrice_WideSpreadFallsBackToLastTrade(t *testing.T) {
	yes, no := MidPrice(400_000, 600_000, 450_000, 500_000)
	assert.Equal(t, int64(450_000), yes)
	assert.Equal(t, Scale, yes+no)
}

func TestMidPrice_NoQuotesOrTradeKeepsCurrent(t *testing.T) {
	yes, no := MidPrice(0, 0, 0, 520_000)
	assert.Equal(t, int64(520_000), yes)
	assert.Equal(t, Scale, yes+no)
}

func TestMidPrice_ClampsToScale(t *testing.T) {
	yes, no := MidPrice(999_990, 1_000_000, 0, 500_000)
	assert.True(t, yes >= 0 && yes <= Scale, "yes = %d, out of [0, Scale]", yes)
	assert.Equal(t, Scale, yes+no)
}
