package db

import "testing"

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"paracetamol": "paracetamol",
		"50%":         `50\%`,
		"vit_c":       `vit\_c`,
		`a\b`:         `a\\b`,
	}
	for in, want := range tests {
		if got := EscapeLike(in); got != want {
			t.Errorf("EscapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
