package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ClientMessage: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ClientMessage: true},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true, ClientMessage: true},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
		CodeStorage:       {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "device storage unavailable"},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", ClientMessage: true},
	}
	for code, want := range tests {
		if got := MetadataFor(code); got != want {
			t.Fatalf("code %s: expected %+v got %+v", code, want, got)
		}
	}
	for code := range metadataByCode {
		if MetadataFor(code).HTTPStatus == 0 {
			t.Fatalf("code %s has no status", code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeNotFound, "listing not found")
	outer := fmt.Errorf("update listing: %w", inner)
	if !IsCode(outer, CodeNotFound) {
		t.Fatalf("expected IsCode to find NOT_FOUND in chain")
	}
	if IsCode(outer, CodeConflict) {
		t.Fatalf("unexpected match for CONFLICT")
	}
	if IsCode(stdErrors.New("plain"), CodeNotFound) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "hosted listings unavailable")
	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(d.Chain))
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("expected empty dump for nil")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeStorage, stdErrors.New("disk full"), "persist device store")
	if got := err.Error(); got != "STORAGE_UNAVAILABLE: persist device store: disk full" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := Newf(CodeValidation, "quantity must be at most %d", 5).Message(); got != "quantity must be at most 5" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if Retryable(New(CodeConflict, "already claimed")) {
		t.Fatal("conflicts are final")
	}
	if !Retryable(fmt.Errorf("wrapped: %w", New(CodeDependency, "redis down"))) {
		t.Fatal("dependency failures are retryable")
	}
	if !Retryable(stdErrors.New("plain")) {
		t.Fatal("untyped errors count as internal")
	}
}

func TestDumpSQLiteBusyIsRetryable(t *testing.T) {
	err := Wrap(CodeConflict, sqlite3.Error{Code: sqlite3.ErrBusy, ExtendedCode: sqlite3.ErrBusyRecovery}, "claim listing")
	d := Dump(err)
	if d.Driver != "sqlite3" || !d.Retryable {
		t.Fatalf("expected retryable sqlite3 dump, got %+v", d)
	}
	if d.SQLState == "" {
		t.Fatal("expected extended code in dump")
	}
}

func TestDumpFieldsSkipEmpty(t *testing.T) {
	fields := Dump(New(CodeNotFound, "listing not found")).Fields()
	if fields["error_code"] != "NOT_FOUND" {
		t.Fatalf("unexpected error_code %v", fields["error_code"])
	}
	for _, key := range []string{"db_driver", "sql_state", "error_chain"} {
		if _, ok := fields[key]; ok {
			t.Fatalf("expected %s to be omitted, got %v", key, fields)
		}
	}
}

func TestWithRetryAfter(t *testing.T) {
	err := New(CodeRateLimit, "slow down").WithRetryAfter(30 * time.Second)
	if err.RetryAfter() != 30*time.Second {
		t.Fatalf("unexpected retry after %v", err.RetryAfter())
	}
	var nilErr *Error
	if nilErr.RetryAfter() != 0 {
		t.Fatal("nil error has no retry after")
	}
}
