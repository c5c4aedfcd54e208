package errs

import (
	"errors"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap("svbyte.Decode4", Corruption, cause)

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("errors.As failed to extract *Error")
	}
	if e.Kind != Corruption {
		t.Errorf("Kind = %v, want %v", e.Kind, Corruption)
	}
}

func TestIs(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"matching kind", New("op", OutOfOrder, "bad"), OutOfOrder, true},
		{"mismatched kind", New("op", OutOfOrder, "bad"), Io, false},
		{"plain error", errors.New("plain"), Io, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Is(tc.err, tc.kind); got != tc.want {
				t.Errorf("Is(...) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if got := InvalidArgument.String(); got != "invalid_argument" {
		t.Errorf("String() = %q", got)
	}
	if got := Kind(99).String(); got != "unknown" {
		t.Errorf("String() for unknown kind = %q", got)
	}
}
