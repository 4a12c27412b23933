package binomdb

import (
	"errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := NewError(ErrBadVirtualIndex)
	if e.Code != ErrBadVirtualIndex {
		t.Fatalf("Code = %v, want ErrBadVirtualIndex", e.Code)
	}
	if e.Error() == "" {
		t.Fatal("Error() returned empty string")
	}

	cause := errors.New("boom")
	wrapped := WrapError(ErrIOShort, cause)
	if !errors.Is(wrapped, cause) {
		t.Fatal("WrapError result does not unwrap to cause")
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"bad index matches", NewError(ErrBadVirtualIndex), IsBadVirtualIndex, true},
		{"bad index mismatches", NewError(ErrCorrupted), IsBadVirtualIndex, false},
		{"inconsistent matches", NewError(ErrInconsistentOnDisk), IsInconsistentOnDisk, true},
		{"out of range matches", NewError(ErrOutOfRange), IsOutOfRange, true},
		{"plain error never matches", errors.New("x"), IsBadVirtualIndex, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != Success {
		t.Error("Code(nil) should be Success")
	}
	if Code(errors.New("plain")) != ErrInvalid {
		t.Error("Code of a non-*Error should be ErrInvalid")
	}
	if Code(NewError(ErrBusy)) != ErrBusy {
		t.Error("Code should recover the original code")
	}
}
