package ledger

import "math/big"

// ChangeMode selects what happens to leftover balance on a partial spend.
type ChangeMode string

// Change handling modes.
const (
	// ModeKeep leaves the remaining balance on the original card.
	ModeKeep ChangeMode = "keep"
	// ModeNewCard drains the original card and mints a child card holding
	// the change.
	ModeNewCard ChangeMode = "new_card"
	// ModeRefund drains the original card and credits the change to the
	// user's account balance.
	ModeRefund ChangeMode = "refund"
)

// ValidChangeMode reports whether mode is one of the supported modes.
func ValidChangeMode(mode ChangeMode) bool {
	switch mode {
	case ModeKeep, ModeNewCard, ModeRefund:
		return true
	}
	return false
}

// ProRataCrypto returns the crypto micro-units to debit when spending
// spendFiat cents from a card holding balanceFiat cents and balanceCrypto
// micro-units. The share is balanceCrypto * spendFiat / balanceFiat rounded
// half to even, so repeated partial spends accumulate no directional bias.
// A spend that covers the full fiat balance takes the full crypto balance,
// leaving no dust behind.
func ProRataCrypto(balanceCrypto, balanceFiat, spendFiat int64) int64 {
	if balanceCrypto <= 0 || spendFiat <= 0 {
		return 0
	}
	if spendFiat >= balanceFiat {
		return balanceCrypto
	}

	num := new(big.Int).Mul(big.NewInt(balanceCrypto), big.NewInt(spendFiat))
	den := big.NewInt(balanceFiat)
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))

	// Round half to even: compare twice the remainder with the divisor.
	doubled := new(big.Int).Lsh(rem, 1)
	switch doubled.Cmp(den) {
	case 1:
		quo.Add(quo, big.NewInt(1))
	case 0:
		if quo.Bit(0) == 1 {
			quo.Add(quo, big.NewInt(1))
		}
	}
	return quo.Int64()
}
