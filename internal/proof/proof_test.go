package proof

import (
	"context"
	"testing"
)

func TestNewHMACVerifierRequiresSecret(t *testing.T) {
	if _, errNew := NewHMACVerifier(""); errNew == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, errNew := NewHMACVerifier("   "); errNew == nil {
		t.Fatalf("expected error for blank secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	verifier, errNew := NewHMACVerifier("secret-a")
	if errNew != nil {
		t.Fatalf("new verifier: %v", errNew)
	}
	ctx := context.Background()

	artifact := verifier.Issue("GV-CARD-1")
	ok, errVerify := verifier.Verify(ctx, "GV-CARD-1", artifact)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if !ok {
		t.Fatalf("issued artifact must verify")
	}

	ok, errVerify = verifier.Verify(ctx, "GV-CARD-2", artifact)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if ok {
		t.Fatalf("artifact is bound to its subject")
	}

	ok, errVerify = verifier.Verify(ctx, "GV-CARD-1", "not-hex-garbage")
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if ok {
		t.Fatalf("garbage artifact must not verify")
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	a, errA := NewHMACVerifier("secret-a")
	if errA != nil {
		t.Fatalf("new verifier: %v", errA)
	}
	b, errB := NewHMACVerifier("secret-b")
	if errB != nil {
		t.Fatalf("new verifier: %v", errB)
	}

	artifact := a.Issue("GV-CARD-1")
	ok, errVerify := b.Verify(context.Background(), "GV-CARD-1", artifact)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if ok {
		t.Fatalf("artifact from another secret must not verify")
	}
}
