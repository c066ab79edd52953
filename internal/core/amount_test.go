package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		err error
	}{
		{"1", 1, nil},
		{"1.0", 1, nil},
		{"12.34", 12.34, nil},
		{"12,34", 12.34, nil},
		{"0.01", 0.01, nil},
		{"1.005", 1.01, nil}, // half-up rounding
		{" 2.50 ", 2.5, nil},
		{"", 0, ErrEmptyAmount},
		{"   ", 0, ErrEmptyAmount},
		{"-1", 0, ErrInvalidAmount},
		{"0", 0, ErrInvalidAmount},
		{"abc", 0, ErrInvalidAmount},
		{"1.2.3", 0, ErrInvalidAmount},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%q expected %v, got %v", tc.in, tc.err, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%q error should be a validation error: %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.out {
			t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[float64]float64{
		0.5:  1,
		1.49: 1,
		2.5:  3,
		-0.5: 0,
		-1.5: -1,
		645:  645,
	}
	for in, want := range cases {
		if got := roundHalfUp(in); got != want {
			t.Errorf("roundHalfUp(%v) = %v, want %v", in, got, want)
		}
	}
}
