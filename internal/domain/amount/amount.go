package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Amount is a quantity of value in octas, the smallest indivisible unit.
// One display unit equals 1e8 octas. All arithmetic at rest is integral;
// decimal strings exist only at the presentation edge.
type Amount uint64

// OctasPerUnit is the fixed-point scale between octas and display units.
const OctasPerUnit = 100_000_000

// Decimals is the number of fractional digits in the display representation.
const Decimals = 8

var ErrOverflow = errors.New("amount overflows uint64")

var ErrInvalidAmount = errors.New("invalid amount string")

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b; b must not exceed a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, fmt.Errorf("amount underflow: %d - %d", a, b)
	}
	return a - b, nil
}

// MulDiv computes a*num/den with floor rounding, widening through big.Int so
// the intermediate product never truncates. den must be non-zero.
func (a Amount) MulDiv(num, den uint64) (Amount, error) {
	if den == 0 {
		return 0, errors.New("division by zero")
	}
	product := new(big.Int).Mul(
		new(big.Int).SetUint64(uint64(a)),
		new(big.Int).SetUint64(num),
	)
	quotient := product.Quo(product, new(big.Int).SetUint64(den))
	if !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return Amount(quotient.Uint64()), nil
}

// BigInt returns the amount as a big.Int.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(a))
}

// Units returns the amount in display units as a float64. Precision loss is
// acceptable here: the value is only used for rendering.
func (a Amount) Units() float64 {
	return float64(a) / OctasPerUnit
}

// String renders the amount as a decimal display string, e.g. 150000000 ->
// "1.5". Trailing fractional zeros are trimmed; a whole amount has no point.
func (a Amount) String() string {
	whole := uint64(a) / OctasPerUnit
	frac := uint64(a) % OctasPerUnit
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := fmt.Sprintf("%d.%08d", whole, frac)
	return strings.TrimRight(s, "0")
}

// Parse converts a decimal display string into octas. It accepts up to eight
// fractional digits and rejects anything that does not fit in uint64.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	wholePart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		wholePart = s[:idx]
		fracPart = s[idx+1:]
	}
	if wholePart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if len(fracPart) > Decimals {
		return 0, fmt.Errorf("%w: more than %d fractional digits", ErrInvalidAmount, Decimals)
	}
	if wholePart == "" {
		wholePart = "0"
	}
	for _, r := range wholePart + fracPart {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}
	whole := new(big.Int)
	if _, ok := whole.SetString(wholePart, 10); !ok {
		return 0, ErrInvalidAmount
	}
	whole.Mul(whole, big.NewInt(OctasPerUnit))
	if fracPart != "" {
		frac := new(big.Int)
		if _, ok := frac.SetString(fracPart, 10); !ok {
			return 0, ErrInvalidAmount
		}
		for i := len(fracPart); i < Decimals; i++ {
			frac.Mul(frac, big.NewInt(10))
		}
		whole.Add(whole, frac)
	}
	if !whole.IsUint64() {
		return 0, ErrOverflow
	}
	return Amount(whole.Uint64()), nil
}
