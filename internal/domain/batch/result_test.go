package batch

import (
	"errors"
	"testing"
)

func TestNewOK(t *testing.T) {
	r := NewOK(3, "item-1")
	if r.ID() != "item-1" || r.Position() != 3 {
		t.Errorf("got id=%q position=%d", r.ID(), r.Position())
	}
	if r.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusOK)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("something failed")
	r := NewError(0, "", err)
	if r.ID() != "" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestCounts(t *testing.T) {
	results := []Result{
		NewOK(0, "a"),
		NewError(1, "b", errors.New("x")),
		NewOK(2, "c"),
	}
	ok, failed := Counts(results)
	if ok != 2 || failed != 1 {
		t.Errorf("Counts = %d, %d", ok, failed)
	}
	if ok, failed := Counts(nil); ok != 0 || failed != 0 {
		t.Errorf("Counts(nil) = %d, %d", ok, failed)
	}
}
