package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

type sampleBody struct {
	SessionID string `json:"sessionId" validate:"required"`
	Format    string `json:"format" validate:"omitempty,oneof=json csv"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"format":"pdf"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["sessionId"] != "is required" || details["format"] != "must be one of json csv" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sessionId":"s","extra":1}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?fields=name,%20phone,,&top=5&bad=x", nil)

	fields := ParseQueryList(req, "fields")
	if len(fields) != 2 || fields[0] != "name" || fields[1] != "phone" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if got := ParseQueryList(req, "missing"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}

	top, err := ParseQueryInt(req, "top", 10, 1, 100)
	if err != nil || top != 5 {
		t.Fatalf("unexpected top %d %v", top, err)
	}
	if _, err := ParseQueryInt(req, "bad", 10, 1, 100); err == nil {
		t.Fatalf("expected error for non numeric value")
	}
	if got := SanitizeString("  jdoe  ", 3); got != "jdo" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
	if got := SanitizeString("j\x00do\ne", 0); got != "jdoe" {
		t.Fatalf("expected control characters dropped, got %q", got)
	}
	if got := SanitizeString("Zoë Smith", 3); got != "Zoë" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
