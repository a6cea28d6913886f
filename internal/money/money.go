package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOutOfRange    = errors.New("amount out of range")
)

// maxMajor keeps minor-unit arithmetic well inside int64: two in-range
// values can always be added without overflow.
var maxMajor = decimal.NewFromInt(1_000_000_000_000)

const maxMinor = 1_000_000_000_000 * 100

// ParseMinor parses a decimal amount such as "12.5" or "-3" into minor units,
// rounding half away from zero to two decimals.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return FromDecimalChecked(value)
}

// FromDecimalChecked is FromDecimal with the range guard: the rounded
// magnitude must stay below one trillion major units.
func FromDecimalChecked(value decimal.Decimal) (int64, error) {
	if value.Round(2).Abs().GreaterThanOrEqual(maxMajor) {
		return 0, ErrOutOfRange
	}
	return FromDecimal(value), nil
}

// InRange reports whether minor lies inside the range ParseMinor accepts.
func InRange(minor int64) bool {
	return minor > -maxMinor && minor < maxMinor
}

// FromDecimal converts a major-unit decimal to minor units.
func FromDecimal(value decimal.Decimal) int64 {
	return value.Round(2).Shift(2).IntPart()
}

// ToDecimal converts minor units back to a two-place decimal.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func FormatMinor(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	whole := value / 100
	frac := value % 100
	formatted := fmt.Sprintf("%d.%02d", whole, frac)
	if negative {
		return "-" + formatted
	}
	return formatted
}
