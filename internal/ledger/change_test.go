package ledger

import "testing"

func TestValidChangeMode(t *testing.T) {
	for _, mode := range []ChangeMode{ModeKeep, ModeNewCard, ModeRefund} {
		if !ValidChangeMode(mode) {
			t.Fatalf("expected %q to be valid", mode)
		}
	}
	for _, mode := range []ChangeMode{"", "burn", "KEEP", "new-card"} {
		if ValidChangeMode(mode) {
			t.Fatalf("expected %q to be invalid", mode)
		}
	}
}

func TestProRataCryptoFullSpendTakesEverything(t *testing.T) {
	if got := ProRataCrypto(1000001, 500, 500); got != 1000001 {
		t.Fatalf("full spend: expected 1000001, got %d", got)
	}
	if got := ProRataCrypto(777, 500, 900); got != 777 {
		t.Fatalf("overspend input: expected 777, got %d", got)
	}
}

func TestProRataCryptoZeroInputs(t *testing.T) {
	if got := ProRataCrypto(0, 500, 100); got != 0 {
		t.Fatalf("zero crypto: expected 0, got %d", got)
	}
	if got := ProRataCrypto(1000, 500, 0); got != 0 {
		t.Fatalf("zero spend: expected 0, got %d", got)
	}
}

func TestProRataCryptoRoundsHalfToEven(t *testing.T) {
	// 100 * 1 / 3 = 33.33 rounds down.
	if got := ProRataCrypto(100, 3, 1); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	// 67 * 1 / 2 = 33.5, odd quotient rounds up to 34.
	if got := ProRataCrypto(67, 2, 1); got != 34 {
		t.Fatalf("expected 34, got %d", got)
	}
	// 68 * 1 / 2 = 34 exactly.
	if got := ProRataCrypto(68, 2, 1); got != 34 {
		t.Fatalf("expected 34, got %d", got)
	}
	// 13 * 2 / 4 = 6.5, even quotient stays at 6.
	if got := ProRataCrypto(13, 4, 2); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
}

func TestProRataCryptoConservesAcrossSequentialSpends(t *testing.T) {
	crypto := int64(100)
	fiat := int64(3)
	var taken int64
	for fiat > 0 {
		share := ProRataCrypto(crypto, fiat, 1)
		taken += share
		crypto -= share
		fiat--
	}
	if taken != 100 || crypto != 0 {
		t.Fatalf("expected all 100 micro-units taken, got taken=%d left=%d", taken, crypto)
	}
}
