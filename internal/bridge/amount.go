package bridge

import (
	"fmt"
	"math/big"
	"strings"
)

// USDCDecimals is the fixed-point scale of the stablecoin contract.
const USDCDecimals = 6

var usdcUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(USDCDecimals), nil)

// ParseUSDC converts a decimal string like "1.5" into USDC base units
// (micro-USDC). The comparison logic downstream is exact integer arithmetic,
// so fractional parts beyond six digits are rejected rather than truncated.
func ParseUSDC(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount %q", s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > USDCDecimals {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, USDCDecimals)
	}

	digits := whole + frac + strings.Repeat("0", USDCDecimals-len(frac))
	units, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return units, nil
}

// FormatUSDC renders base units back into a decimal string, trimming
// trailing zeros ("1500000" -> "1.5").
func FormatUSDC(units *big.Int) string {
	q, r := new(big.Int).QuoRem(units, usdcUnit, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%06d", r), "0")
	return q.String() + "." + frac
}
