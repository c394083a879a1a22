package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, publicMsg: "resource not found"},
		{code: CodeNetwork, publicMsg: "network unavailable", retryable: true, detailsOK: true},
		{code: CodeDecode, publicMsg: "unexpected response from server", detailsOK: true},
		{code: CodeStore, publicMsg: "local storage unavailable", retryable: true},
		{code: CodeInternal, publicMsg: "internal error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.PublicMessage != "internal error" {
		t.Fatalf("expected internal metadata, got %+v", meta)
	}
}

func TestWrapPreservesCauseAndCode(t *testing.T) {
	cause := stdErrors.New("dial tcp: connection refused")
	err := fmt.Errorf("sync: %w", Wrap(CodeNetwork, cause, "fetch products"))

	if !IsCode(err, CodeNetwork) {
		t.Fatalf("expected network code in chain")
	}
	if IsCode(err, CodeDecode) {
		t.Fatalf("unexpected decode code")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable via errors.Is")
	}
	if !As(err).Retryable() {
		t.Fatalf("network errors should be retryable")
	}
}

func TestNilErrorAccessors(t *testing.T) {
	var e *Error
	if e.Code() != CodeInternal {
		t.Fatalf("nil error should report internal code")
	}
	if e.Message() != "" || e.Details() != nil || e.Unwrap() != nil {
		t.Fatalf("nil error accessors should be zero")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should be nil")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeStore, stdErrors.New("disk I/O"), "replace catalog")
	d := Dump(err)
	if d.Code != CodeStore {
		t.Fatalf("expected store code, got %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(d.Chain))
	}
}

func TestDumpDriverDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "catalog_products_pkey", TableName: "catalog_products", Message: "duplicate"}
	d := Dump(Wrap(CodeStore, pgErr, "insert"))
	if d.DriverCode != "23505" || d.DriverConstraint != "catalog_products_pkey" || d.DriverTable != "catalog_products" {
		t.Fatalf("unexpected postgres dump %+v", d)
	}

	full := sqlite3.Error{Code: sqlite3.ErrFull, ExtendedCode: sqlite3.ErrNoExtended(sqlite3.ErrFull)}
	if !IsStorageFull(Wrap(CodeStore, full, "insert")) {
		t.Fatalf("expected sqlite full error to be detected")
	}
	if IsStorageFull(stdErrors.New("other")) {
		t.Fatalf("plain errors are not storage full")
	}
}
