package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(KindAPI, "noop", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestKindOfThroughChain(t *testing.T) {
	base := Newf(KindNotFound, "rule %q not found", "x")
	wrapped := fmt.Errorf("outer: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("KindOf = %v, want not_found", got)
	}
	if !IsNotFound(wrapped) {
		t.Fatalf("expected IsNotFound")
	}
	if IsStorage(wrapped) {
		t.Fatalf("did not expect IsStorage")
	}
}

func TestKindOfUntagged(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("KindOf = %v, want internal", got)
	}
}

func TestErrorMessage(t *testing.T) {
	inner := errors.New("disk full")
	err := Wrap(KindStorage, "save rules", inner)
	if err.Error() != "save rules: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected unwrap to reach inner error")
	}
	if New(KindParameter, "bad input").Error() != "bad input" {
		t.Fatalf("unexpected bare message")
	}
}

func TestKindStrings(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInternal, "internal"},
		{KindParameter, "parameter"},
		{KindStorage, "storage"},
		{KindNotFound, "not_found"},
		{KindAPI, "api"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Fatalf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
