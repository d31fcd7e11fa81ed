package util

import "testing"

func TestFirstLine(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ssh: Could not resolve hostname x\n", "ssh: Could not resolve hostname x"},
		{"\n\n  kex_exchange_identification: read: Connection reset  \nnoise", "kex_exchange_identification: read: Connection reset"},
		{"", "fallback"},
		{" \n\t\n", "fallback"},
	}
	for _, tc := range cases {
		if got := FirstLine(tc.in, "fallback"); got != tc.want {
			t.Fatalf("FirstLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEmptyDash(t *testing.T) {
	if got := EmptyDash("  "); got != "-" {
		t.Fatalf("expected dash, got %q", got)
	}
	if got := EmptyDash("deploy"); got != "deploy" {
		t.Fatalf("expected value kept, got %q", got)
	}
}
