package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nettracker/internal/core"
	"nettracker/internal/services"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"n":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d with body %q", w.Code, w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"f": func() {}}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	UnprocessableEntityError("amount is not a number").Write(w)

	want := `{"error":{"code":"validation_failed","message":"amount is not a number"}}`
	if strings.TrimSpace(w.Body.String()) != want {
		t.Errorf("Body = %s, want %s", w.Body.String(), want)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", core.ErrEmptyAmount, http.StatusUnprocessableEntity, CodeValidation},
		{"wrapped validation", fmt.Errorf("add: %w", core.ErrDescriptionTooLong), http.StatusUnprocessableEntity, CodeValidation},
		{"not found", fmt.Errorf("delete: %w", core.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"missing credential", services.ErrMissingCredential, http.StatusUnauthorized, CodeAuth},
		{"remote auth", fmt.Errorf("sync: %w", core.ErrAuth), http.StatusUnauthorized, CodeAuth},
		{"network", fmt.Errorf("sync: %w", core.ErrNetwork), http.StatusBadGateway, CodeRemote},
		{"busy", services.ErrSyncInProgress, http.StatusConflict, CodeSyncInProgress},
		{"export disabled", services.ErrExportDisabled, http.StatusServiceUnavailable, CodeExportDisabled},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, CodeRequestCanceled},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			resp := FromError(tt.err)
			resp.Write(w)

			if resp.StatusCode() != tt.wantStatus || w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := errorCode(t, w); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}
