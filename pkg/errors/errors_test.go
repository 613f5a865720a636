package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	meta := MetadataFor(CodeInsufficientStock)
	if meta.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", meta.HTTPStatus)
	}
	if meta.Retryable {
		t.Fatal("insufficient stock must not be retryable")
	}
	if !MetadataFor(CodeContention).Retryable {
		t.Fatal("contention must be retryable")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Code(CodeDependency), cause, "store unavailable")
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause")
	}
	if typed := As(fmt.Errorf("outer: %w", err)); typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("expected typed error through wrapping, got %v", typed)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if IsRetryable(New(CodeValidation, "bad input")) {
		t.Fatal("validation must not be retryable")
	}
	if !IsRetryable(New(CodeContention, "locked")) {
		t.Fatal("contention must be retryable")
	}
	if !IsRetryable(errors.New("opaque")) {
		t.Fatal("untyped errors are retryable")
	}
}
