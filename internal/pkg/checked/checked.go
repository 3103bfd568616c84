// Package checked implements non-wrapping u64 arithmetic for balances and totals.
// Every helper fails with domain.ErrMathOverflow instead of wrapping.
package checked

import (
	"math"
	"math/bits"

	"carbonpay-backend/internal/domain"
)

func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrMathOverflow
	}
	return sum, nil
}

func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, domain.ErrMathOverflow
	}
	return diff, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, domain.ErrMathOverflow
	}
	return lo, nil
}

// Div fails on a zero divisor.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, domain.ErrMathOverflow
	}
	return a / b, nil
}

// MaxStorable is the largest amount a signed 64-bit column holds.
const MaxStorable uint64 = math.MaxInt64

// Storable fails with domain.ErrMathOverflow when v does not fit a stored amount.
func Storable(v uint64) error {
	if v > MaxStorable {
		return domain.ErrMathOverflow
	}
	return nil
}
