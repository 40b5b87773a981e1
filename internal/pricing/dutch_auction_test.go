package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func exactInputAuction() *Auction {
	return &Auction{
		InitialPrice:    big.NewInt(2_000_000), // 2.0
		FinalPrice:      big.NewInt(1_900_000), // 1.9
		StartTime:       1000,
		EndTime:         2000,
		FillDeadline:    3000,
		SafetyFactorPPM: 950_000, // 0.95
		ExactInput:      true,
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"2.0", 2_000_000},
		{"1.9", 1_900_000},
		{"1.8525", 1_852_500},
		{"0.95", 950_000},
		{"100", 100_000_000},
		{".5", 500_000},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.Int64(), tc.in)
	}

	for _, bad := range []string{"", "-1.0", "-0.5", "1.1234567", "abc"} {
		_, err := ParsePrice(bad)
		require.Error(t, err, bad)
	}
}

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "2.0", FormatPrice(big.NewInt(2_000_000)))
	require.Equal(t, "1.9", FormatPrice(big.NewInt(1_900_000)))
	require.Equal(t, "1.8525", FormatPrice(big.NewInt(1_852_500)))
	require.Equal(t, "0.000001", FormatPrice(big.NewInt(1)))
}

func TestPriceClampsOutsideWindow(t *testing.T) {
	a := exactInputAuction()

	before, err := a.Price(500)
	require.NoError(t, err)
	require.Equal(t, a.InitialPrice, before)

	after, err := a.Price(2500)
	require.NoError(t, err)
	require.Equal(t, a.FinalPrice, after)
}

func TestPriceLinearInterpolation(t *testing.T) {
	a := exactInputAuction()

	mid, err := a.Price(1500)
	require.NoError(t, err)
	require.Equal(t, int64(1_950_000), mid.Int64()) // midpoint of 2.0 and 1.9
}

func TestPriceMonotonicDecay(t *testing.T) {
	a := exactInputAuction()

	prev, err := a.Price(a.StartTime)
	require.NoError(t, err)
	for ts := a.StartTime + 100; ts <= a.EndTime; ts += 100 {
		p, err := a.Price(ts)
		require.NoError(t, err)
		require.LessOrEqual(t, p.Cmp(prev), 0, "price must not rise for exact-input")
		prev = p
	}
}

func TestPriceRejectsExpiredOrder(t *testing.T) {
	a := exactInputAuction()

	_, err := a.Price(3001)
	require.ErrorIs(t, err, ErrOrderExpired)
}

func TestEffectivePriceExactInput(t *testing.T) {
	a := exactInputAuction()

	// 1.95 * 0.95 = 1.8525
	effective, err := a.EffectivePrice(1500)
	require.NoError(t, err)
	require.Equal(t, int64(1_852_500), effective.Int64())
}

func TestEffectivePriceExactOutput(t *testing.T) {
	a := &Auction{
		InitialPrice:    big.NewInt(1_900_000),
		FinalPrice:      big.NewInt(2_000_000),
		StartTime:       1000,
		EndTime:         2000,
		FillDeadline:    3000,
		SafetyFactorPPM: 950_000,
		ExactInput:      false,
	}
	require.NoError(t, a.Validate())

	// 1.95 / 0.95 rounds down to 2.052631
	effective, err := a.EffectivePrice(1500)
	require.NoError(t, err)
	require.Equal(t, int64(2_052_631), effective.Int64())
}

func TestEffectivePriceRejectsBadSafetyFactor(t *testing.T) {
	// A zero-value safety factor must surface as an error, not a division
	// by zero on the exact-output branch
	for _, exactInput := range []bool{true, false} {
		a := &Auction{
			InitialPrice:    big.NewInt(1_900_000),
			FinalPrice:      big.NewInt(1_900_000),
			StartTime:       1000,
			EndTime:         2000,
			FillDeadline:    3000,
			SafetyFactorPPM: 0,
			ExactInput:      exactInput,
		}
		_, err := a.EffectivePrice(1500)
		require.ErrorIs(t, err, ErrInvalidPriceRange)

		a.SafetyFactorPPM = SafetyFactorDenominator + 1
		_, err = a.EffectivePrice(1500)
		require.ErrorIs(t, err, ErrInvalidPriceRange)
	}
}

func TestValidateRejectsWrongDirection(t *testing.T) {
	a := exactInputAuction()
	a.InitialPrice = big.NewInt(1_000_000)
	a.FinalPrice = big.NewInt(2_000_000)
	require.ErrorIs(t, a.Validate(), ErrInvalidPriceRange)

	b := exactInputAuction()
	b.ExactInput = false
	require.ErrorIs(t, b.Validate(), ErrInvalidPriceRange)
}

func TestValidateRejectsBadWindow(t *testing.T) {
	a := exactInputAuction()
	a.EndTime = a.StartTime
	require.ErrorIs(t, a.Validate(), ErrInvalidPriceRange)

	b := exactInputAuction()
	b.EndTime = b.FillDeadline + 1
	require.ErrorIs(t, b.Validate(), ErrInvalidPriceRange)

	c := exactInputAuction()
	c.SafetyFactorPPM = 0
	require.ErrorIs(t, c.Validate(), ErrInvalidPriceRange)
}

func TestAcceptOfferExactInput(t *testing.T) {
	a := exactInputAuction()

	// at t=1500 effective is 1.8525; offers at or above pass
	require.NoError(t, a.AcceptOffer(big.NewInt(1_852_500), 1500))
	require.NoError(t, a.AcceptOffer(big.NewInt(2_000_000), 1500))
	require.ErrorIs(t, a.AcceptOffer(big.NewInt(1_852_499), 1500), ErrPriceBelowAuction)
}

func TestAcceptOfferExactOutput(t *testing.T) {
	a := exactInputAuction()
	a.ExactInput = false
	a.InitialPrice = big.NewInt(1_900_000)
	a.FinalPrice = big.NewInt(2_000_000)

	// effective at t=1500 is 2.052631; offers at or below pass
	require.NoError(t, a.AcceptOffer(big.NewInt(2_052_631), 1500))
	require.NoError(t, a.AcceptOffer(big.NewInt(1_900_000), 1500))
	require.ErrorIs(t, a.AcceptOffer(big.NewInt(2_052_632), 1500), ErrPriceBelowAuction)
}

func TestAcceptOfferAfterDeadline(t *testing.T) {
	a := exactInputAuction()
	require.ErrorIs(t, a.AcceptOffer(big.NewInt(2_000_000), 3001), ErrOrderExpired)
}

func TestDestinationAmount(t *testing.T) {
	// 1e18 src at price 1.9525, same decimals
	src, _ := new(big.Int).SetString("1000000000000000000", 10)
	dst := DestinationAmount(src, big.NewInt(1_952_500), 18, 18)
	want, _ := new(big.Int).SetString("1952500000000000000", 10)
	require.Equal(t, want, dst)

	// 18 -> 6 decimals: 1e18 at price 2.0 yields 2e6
	dst = DestinationAmount(src, big.NewInt(2_000_000), 18, 6)
	require.Equal(t, big.NewInt(2_000_000), dst)

	// 6 -> 18 decimals
	dst = DestinationAmount(big.NewInt(1_000_000), big.NewInt(2_000_000), 6, 18)
	want, _ = new(big.Int).SetString("2000000000000000000", 10)
	require.Equal(t, want, dst)
}

func TestParseSafetyFactor(t *testing.T) {
	ppm, err := ParseSafetyFactor("0.95")
	require.NoError(t, err)
	require.Equal(t, int64(950_000), ppm)

	ppm, err = ParseSafetyFactor("1")
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), ppm)

	for _, bad := range []string{"0", "1.5", "-0.5", ""} {
		_, err := ParseSafetyFactor(bad)
		require.Error(t, err, bad)
	}
}
