package ledger

import (
	"testing"
	"time"

	"github.com/giftvault/giftvault/internal/models"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		balance   int64
		expiresAt *time.Time
		want      models.CardStatus
	}{
		{"positive balance no expiry", 100, nil, models.CardStatusActive},
		{"zero balance no expiry", 0, nil, models.CardStatusEmpty},
		{"positive balance future expiry", 100, &future, models.CardStatusActive},
		{"positive balance past expiry", 100, &past, models.CardStatusExpired},
		{"zero balance past expiry", 0, &past, models.CardStatusExpired},
		{"zero balance future expiry", 0, &future, models.CardStatusEmpty},
	}
	for _, tc := range cases {
		if got := DeriveStatus(tc.balance, tc.expiresAt, now); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestDeriveStatusExpiryBoundaryIsInclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exact := now
	if got := DeriveStatus(100, &exact, now); got != models.CardStatusActive {
		t.Fatalf("card expiring exactly now should still be usable, got %s", got)
	}
}

func TestRefreshStatusReportsChange(t *testing.T) {
	now := time.Now().UTC()
	card := models.GiftCard{BalanceFiatCents: 100, Status: models.CardStatusActive}
	if refreshStatus(&card, now) {
		t.Fatalf("unchanged status should report false")
	}
	card.BalanceFiatCents = 0
	if !refreshStatus(&card, now) {
		t.Fatalf("status change should report true")
	}
	if card.Status != models.CardStatusEmpty {
		t.Fatalf("expected empty, got %s", card.Status)
	}
}
