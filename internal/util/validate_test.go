package util

import (
	"errors"
	"testing"
)

func TestParseOptionalPortBoundaries(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "  ", want: 0},
		{in: "1", want: 1},
		{in: "22", want: 22},
		{in: "65535", want: 65535},
		{in: "0", wantErr: true},
		{in: "65536", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "ssh", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseOptionalPort(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseOptionalPort(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseOptionalPort(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseOptionalPort(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	cases := map[string]error{
		"10.0.0.5":        nil,
		"db.example.com":  nil,
		"":                ErrEmpty,
		"my host":         ErrWhitespace,
		" lead":           ErrWhitespace,
		"db..example.com": ErrConsecutiveDots,
		".example.com":    ErrEdgeDot,
		"example.com.":    ErrEdgeDot,
	}
	for in, want := range cases {
		if err := ValidateAddress(in); !errors.Is(err, want) {
			t.Fatalf("ValidateAddress(%q) = %v, want %v", in, err, want)
		}
	}
}

func TestValidateProfileIDAndUser(t *testing.T) {
	if err := ValidateProfileID("box1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateProfileID(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if err := ValidateProfileID("my box"); !errors.Is(err, ErrWhitespace) {
		t.Fatalf("expected ErrWhitespace, got %v", err)
	}
	if !HasWildcard("web-*") || HasWildcard("web-1") {
		t.Fatal("wildcard detection mismatch")
	}
	if err := ValidateUser(""); err != nil {
		t.Fatalf("empty user should be valid: %v", err)
	}
	if err := ValidateUser("root@x"); !errors.Is(err, ErrInvalidUserChar) {
		t.Fatalf("expected ErrInvalidUserChar, got %v", err)
	}
}
