package token

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// AmountToUiAmount formats a raw amount as a decimal string scaled by
// decimals. Trailing fractional zeros are trimmed, and so is the decimal
// point when nothing follows it.
func AmountToUiAmount(amount uint64, decimals uint8) string {
	s := strconv.FormatUint(amount, 10)
	if decimals == 0 {
		return s
	}
	width := int(decimals) + 1
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	point := len(s) - int(decimals)
	s = s[:point] + "." + s[point:]
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// UiAmountToAmount parses a decimal string into a raw amount scaled by
// decimals. Fractional digits beyond decimals are rejected rather than
// truncated, except for trailing zeros.
func UiAmountToAmount(uiAmount string, decimals uint8) (uint64, error) {
	whole, frac, _ := strings.Cut(uiAmount, ".")
	if strings.Contains(frac, ".") {
		return 0, fmt.Errorf("%w: %q has more than one decimal point", ErrInvalidArgument, uiAmount)
	}
	frac = strings.TrimRight(frac, "0")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q has no digits", ErrInvalidArgument, uiAmount)
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidArgument, uiAmount, decimals)
	}

	digits := whole + frac
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidArgument, uiAmount)
		}
	}
	digits += strings.Repeat("0", int(decimals)-len(frac))

	var amount uint64
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		hi, lo := bits.Mul64(amount, 10)
		if hi != 0 {
			return 0, fmt.Errorf("%w: %q exceeds u64", ErrOverflow, uiAmount)
		}
		sum, carry := bits.Add64(lo, uint64(c-'0'), 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w: %q exceeds u64", ErrOverflow, uiAmount)
		}
		amount = sum
	}
	return amount, nil
}
