package result

import (
	"errors"
	"testing"
)

func TestResultKinds(t *testing.T) {
	found := Found("x")
	if v, ok := found.Get(); !ok || v != "x" {
		t.Fatalf("found.Get() = %q, %v", v, ok)
	}
	empty := Empty[string]()
	if _, ok := empty.Get(); ok || empty.Kind != KindEmpty {
		t.Fatalf("expected empty result, got %+v", empty)
	}
	failed := Failed[int](errors.New("boom"))
	if failed.OK() || failed.Kind != KindFailed || failed.Reason == nil {
		t.Fatalf("expected failed result, got %+v", failed)
	}
	if failed.Kind.String() != "failed" || KindFound.String() != "found" || KindEmpty.String() != "empty" {
		t.Fatalf("unexpected kind names")
	}
}
