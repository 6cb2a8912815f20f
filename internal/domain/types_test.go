package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/clobcore/internal/pricing"
)

func validInput() NewOrderInput {
	return NewOrderInput{
		Maker:           "SP000TESTMAKER",
		MarketID:        "m1",
		ConditionID:     strings.Repeat("11", 32),
		MakerPositionID: strings.Repeat("aa", 32),
		TakerPositionID: strings.Repeat("bb", 32),
		Side:            Buy,
		Price:           500_000,
		Size:            10,
		Salt:            "1",
	}
}

func TestNewOrderInputValidate_AcceptsWellFormedOrder(t *testing.T) {
	in := validInput()
	assert.NoError(t, in.Validate())
}

func TestNewOrderInputValidate_RejectsPriceBoundaries(t *testing.T) {
	for _, price := range []int64{0, pricing.Scale, -1, pricing.Scale + 1} {
		in := validInput()
		in.Price = price
		assert.Errorf(t, in.Validate(), "price %d must be rejected", price)
	}

	in := validInput()
	in.Price = 1
	assert.NoError(t, in.Validate())
	in.Price = pricing.Scale - 1
	assert.NoError(t, in.Validate())
}

func TestNewOrderInputValidate_RejectsNonPositiveSize(t *testing.T) {
	in := validInput()
	in.Size = 0
	assert.Error(t, in.Validate())
}

func TestNewOrderInputValidate_RejectsEqualPositionIDs(t *testing.T) {
	in := validInput()
	in.TakerPositionID = in.MakerPositionID
	assert.Error(t, in.Validate())
}

func TestNewOrderInputValidate_RejectsShortSignature(t *testing.T) {
	in := validInput()
	in.Signature = "deadbeef"
	assert.Error(t, in.Validate())

	in.Signature = strings.Repeat("ab", 65)
	assert.NoError(t, in.Validate())
}

func TestMarketValidate_RequiresComplementaryPrices(t *testing.T) {
	m := Market{
		MarketID:      "m1",
		ConditionID:   strings.Repeat("11", 32),
		YesPositionID: strings.Repeat("aa", 32),
		NoPositionID:  strings.Repeat("bb", 32),
		YesPrice:      600_000,
		NoPrice:       400_000,
	}
	require.NoError(t, m.Validate())

	m.NoPrice = 500_000
	assert.Error(t, m.Validate(), "yesPrice + noPrice must equal PRICE_SCALE")
}

func TestBookPositionID_FollowsSideConvention(t *testing.T) {
	o := Order{
		MakerPositionID: strings.Repeat("aa", 32),
		TakerPositionID: strings.Repeat("bb", 32),
		Side:            Buy,
	}
	assert.Equal(t, o.TakerPositionID, o.BookPositionID(), "a BUY's book is what the maker receives")

	o.Side = Sell
	assert.Equal(t, o.MakerPositionID, o.BookPositionID(), "a SELL's book is what the maker surrenders")
}

func TestOrderStatus_RestingAndTerminalPartitionTheStates(t *testing.T) {
	resting := []OrderStatus{OrderOpen, OrderPartiallyFilled}
	terminal := []OrderStatus{OrderFilled, OrderCancelled, OrderExpired}

	for _, s := range resting {
		assert.True(t, s.IsResting(), string(s))
		assert.False(t, s.IsTerminal(), string(s))
	}
	for _, s := range terminal {
		assert.False(t, s.IsResting(), string(s))
		assert.True(t, s.IsTerminal(), string(s))
	}
}
