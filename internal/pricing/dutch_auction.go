// Package pricing implements linear Dutch auction price discovery for swap
// orders. Prices are scaled integers with PriceDecimals decimal places,
// computed with big.Int so no rounding drift accumulates across chains with
// different token decimal counts.
package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// PriceDecimals decimal places in the scaled price representation
const PriceDecimals = 6

// SafetyFactorDenominator safety factors are stored as parts per million
const SafetyFactorDenominator = 1_000_000

var priceScale = big.NewInt(1_000_000) // 10^PriceDecimals

var (
	ErrOrderExpired      = errors.New("order expired")
	ErrInvalidPriceRange = errors.New("invalid price range for order direction")
	ErrPriceBelowAuction = errors.New("offered price is worse than current auction price")
)

// Auction Dutch auction parameters for one order
type Auction struct {
	InitialPrice    *big.Int // scaled, price at StartTime
	FinalPrice      *big.Int // scaled, price at EndTime
	StartTime       int64    // unix seconds
	EndTime         int64    // unix seconds
	FillDeadline    int64    // unix seconds, order lifetime bound
	SafetyFactorPPM int64    // e.g. 950000 for 0.95
	ExactInput      bool     // true: price is output per unit input; false: input per unit output
}

// Validate checks the price range is monotonic in the right direction for
// the order type and the auction window fits inside the order lifetime.
func (a *Auction) Validate() error {
	if a.InitialPrice == nil || a.FinalPrice == nil {
		return fmt.Errorf("%w: missing price bounds", ErrInvalidPriceRange)
	}
	if a.InitialPrice.Sign() <= 0 || a.FinalPrice.Sign() <= 0 {
		return fmt.Errorf("%w: prices must be positive", ErrInvalidPriceRange)
	}
	if a.ExactInput {
		// Output per input starts high (best for user) and decays
		if a.InitialPrice.Cmp(a.FinalPrice) < 0 {
			return fmt.Errorf("%w: exact-input auction must have initialPrice >= finalPrice", ErrInvalidPriceRange)
		}
	} else {
		// Input per output starts low and rises toward the resolver
		if a.InitialPrice.Cmp(a.FinalPrice) > 0 {
			return fmt.Errorf("%w: exact-output auction must have initialPrice <= finalPrice", ErrInvalidPriceRange)
		}
	}
	if a.EndTime <= a.StartTime {
		return fmt.Errorf("%w: auction end must be after start", ErrInvalidPriceRange)
	}
	if a.FillDeadline > 0 && a.EndTime > a.FillDeadline {
		return fmt.Errorf("%w: auction window exceeds fill deadline", ErrInvalidPriceRange)
	}
	if a.SafetyFactorPPM <= 0 || a.SafetyFactorPPM > SafetyFactorDenominator {
		return fmt.Errorf("%w: safety factor must be in (0, 1]", ErrInvalidPriceRange)
	}
	return nil
}

// Price returns the auction price at time t: linear interpolation between
// InitialPrice at StartTime and FinalPrice at EndTime, clamped outside the
// window. Rejects t past the fill deadline.
func (a *Auction) Price(t int64) (*big.Int, error) {
	if a.FillDeadline > 0 && t > a.FillDeadline {
		return nil, ErrOrderExpired
	}
	if t <= a.StartTime {
		return new(big.Int).Set(a.InitialPrice), nil
	}
	if t >= a.EndTime {
		return new(big.Int).Set(a.FinalPrice), nil
	}

	// price = initial + (final - initial) * elapsed / duration
	elapsed := big.NewInt(t - a.StartTime)
	duration := big.NewInt(a.EndTime - a.StartTime)
	diff := new(big.Int).Sub(a.FinalPrice, a.InitialPrice)
	change := new(big.Int).Mul(diff, elapsed)
	change.Quo(change, duration)
	return new(big.Int).Add(a.InitialPrice, change), nil
}

// EffectivePrice applies the safety factor in the direction that protects
// the resolver: less output promised for exact-input orders, more input
// required for exact-output orders.
func (a *Auction) EffectivePrice(t int64) (*big.Int, error) {
	if a.SafetyFactorPPM <= 0 || a.SafetyFactorPPM > SafetyFactorDenominator {
		return nil, fmt.Errorf("%w: safety factor %d out of range", ErrInvalidPriceRange, a.SafetyFactorPPM)
	}
	price, err := a.Price(t)
	if err != nil {
		return nil, err
	}
	sf := big.NewInt(a.SafetyFactorPPM)
	denom := big.NewInt(SafetyFactorDenominator)
	if a.ExactInput {
		price.Mul(price, sf)
		price.Quo(price, denom)
	} else {
		price.Mul(price, denom)
		price.Quo(price, sf)
	}
	return price, nil
}

// AcceptOffer checks a resolver's offered price against the effective price
// at time t. For exact-input orders the resolver must promise at least the
// effective output per input; for exact-output it must not demand more input
// than the effective price.
func (a *Auction) AcceptOffer(offered *big.Int, t int64) error {
	effective, err := a.EffectivePrice(t)
	if err != nil {
		return err
	}
	if a.ExactInput {
		if offered.Cmp(effective) < 0 {
			return fmt.Errorf("%w: offered %s < effective %s", ErrPriceBelowAuction, offered, effective)
		}
	} else {
		if offered.Cmp(effective) > 0 {
			return fmt.Errorf("%w: offered %s > effective %s", ErrPriceBelowAuction, offered, effective)
		}
	}
	return nil
}

// DestinationAmount converts a source amount to the destination amount
// implied by a scaled price, adjusting for token decimal difference.
func DestinationAmount(srcAmount *big.Int, price *big.Int, srcDecimals, dstDecimals int) *big.Int {
	dst := new(big.Int).Mul(srcAmount, price)
	shift := dstDecimals - srcDecimals
	if shift > 0 {
		dst.Mul(dst, pow10(shift))
	} else if shift < 0 {
		dst.Quo(dst, pow10(-shift))
	}
	return dst.Quo(dst, priceScale)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ParsePrice parses a decimal string such as "2.0" or "1.8525" into the
// scaled integer representation. At most PriceDecimals fractional digits.
func ParsePrice(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty price")
	}
	// Checked up front: "-0.5" would split into "-0" and pass a sign check
	// on the integer part alone
	if s[0] == '-' {
		return nil, fmt.Errorf("price %q must not be negative", s)
	}
	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > PriceDecimals {
		return nil, fmt.Errorf("price %q has more than %d decimal places", s, PriceDecimals)
	}
	fracPart += strings.Repeat("0", PriceDecimals-len(fracPart))

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	frac, ok := new(big.Int).SetString(fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	whole.Mul(whole, priceScale)
	return whole.Add(whole, frac), nil
}

// FormatPrice renders a scaled price back into a decimal string
func FormatPrice(p *big.Int) string {
	whole := new(big.Int).Quo(p, priceScale)
	frac := new(big.Int).Mod(p, priceScale)
	if frac.Sign() == 0 {
		return whole.String() + ".0"
	}
	return whole.String() + "." + strings.TrimRight(fmt.Sprintf("%06d", frac.Int64()), "0")
}

// ParseAmount parses a base-10 amount string (wei-scale integer)
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// ParseSafetyFactor parses a decimal safety factor such as "0.95" into ppm
func ParseSafetyFactor(s string) (int64, error) {
	p, err := ParsePrice(s)
	if err != nil {
		return 0, fmt.Errorf("invalid safety factor: %w", err)
	}
	if !p.IsInt64() || p.Int64() <= 0 || p.Int64() > SafetyFactorDenominator {
		return 0, fmt.Errorf("safety factor %q must be in (0, 1]", s)
	}
	return p.Int64(), nil
}
