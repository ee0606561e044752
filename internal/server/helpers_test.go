// -------------------------------------------------------------------------------
// Helper Tests - ID Parsing and Body Decoding
//
// Author: Alex Freidah
//
// Unit tests for route id parsing and bounded JSON body decoding.
// -------------------------------------------------------------------------------

package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"9001", 9001, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"99999999999999999999", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"id": tt.raw})
			got, err := parseID(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseID(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"first_name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest("POST", "/patients", strings.NewReader(body))
	w := httptest.NewRecorder()

	var dst map[string]string
	if err := decodeJSON(w, r, &dst); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, 418, `quote " and <tag>`)

	if w.Code != 418 {
		t.Errorf("status = %d, want 418", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := "{\"error\":\"quote \\\" and \\u003ctag\\u003e\"}\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}
