package util

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"supersecretvalue", "supe...alue"},
		{"sevench", "se...ch"},
		{"abcd", "a...d"},
		{"ab", "ab"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MaskSecret(tc.in); got != tc.want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskWallet(t *testing.T) {
	if got := MaskWallet("0xAbCdEf0123456789abcdef0123456789AbCdEf01"); got != "0xAbCd...Ef01" {
		t.Fatalf("unexpected mask: %q", got)
	}
	// Short or non-0x values fall back to the generic mask.
	if got := MaskWallet("walletaddr"); got != "wall...addr" {
		t.Fatalf("unexpected fallback mask: %q", got)
	}
}

func TestNormalizeWallet(t *testing.T) {
	if got := NormalizeWallet("  0xABCdef99  "); got != "0xabcdef99" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
