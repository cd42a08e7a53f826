package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCode(t *testing.T) {
	meta := MetadataFor(CodeForbidden)
	if meta.HTTPStatus != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", meta.HTTPStatus)
	}
	if meta.Retryable {
		t.Fatal("forbidden should not be retryable")
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500 fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeStateConflict, cause, "denied to approved")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to satisfy errors.Is")
	}
	if err.Code() != CodeStateConflict {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Error() != "STATE_CONFLICT: denied to approved" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}

func TestWrapNilCauseBehavesLikeNew(t *testing.T) {
	err := Wrap(CodeNotFound, nil, "group not found")
	if err.Unwrap() != nil {
		t.Fatal("expected no cause")
	}
	if err.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeForbidden, "invite only")
	outer := fmt.Errorf("join group: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeForbidden {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if !HasCode(outer, CodeForbidden) {
		t.Fatal("HasCode should match through wrapping")
	}
}

func TestAsReturnsNilForUntyped(t *testing.T) {
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
	if HasCode(nil, CodeInternal) {
		t.Fatal("nil error should not match any code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	inner := New(CodeConflict, "duplicate membership")
	outer := fmt.Errorf("cascade: %w", inner)

	dump := Dump(outer)
	if dump.Code != CodeConflict {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain of at least 2, got %d", len(dump.Chain))
	}
}
