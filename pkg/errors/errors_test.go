package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInsufficientStock, status: http.StatusConflict, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeInvalidVariant, status: http.StatusUnprocessableEntity, publicMsg: "variant unavailable for this product", detailsOK: true},
		{code: CodeMergeInProgress, status: http.StatusAccepted, publicMsg: "cart merge already in progress", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.code, tc.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tc.publicMsg {
			t.Fatalf("%s: expected message %q, got %q", tc.code, tc.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tc.retryable {
			t.Fatalf("%s: expected retryable %v", tc.code, tc.retryable)
		}
		if meta.DetailsAllowed != tc.detailsOK {
			t.Fatalf("%s: expected details allowed %v", tc.code, tc.detailsOK)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestErrorWrappingPreservesCause(t *testing.T) {
	cause := stdErrors.New("row not found")
	err := Wrap(CodeNotFound, cause, "inventory record missing")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to satisfy errors.Is")
	}
	typed := As(err)
	if typed == nil {
		t.Fatal("expected As to recover typed error")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
}

func TestInsufficientStockCarriesAvailableCount(t *testing.T) {
	err := InsufficientStock(2, 5)
	if err.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code: %s", err.Code())
	}
	details, ok := err.Details().(InsufficientStockDetails)
	if !ok {
		t.Fatalf("unexpected details type: %T", err.Details())
	}
	if details.AvailableQty != 2 || details.RequestedQty != 5 {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestNilErrorAccessors(t *testing.T) {
	var err *Error
	if err.Code() != CodeInternal {
		t.Fatal("expected nil error to report internal code")
	}
	if err.Error() != "" {
		t.Fatal("expected empty message for nil error")
	}
	if As(nil) != nil {
		t.Fatal("expected As(nil) to be nil")
	}
}
