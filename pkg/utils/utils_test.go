package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusBadRequest, "bad")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "bad" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	if err := SendSSEEvent(rec, rec, "dashboard", map[string]int{"totalChats": 3}); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := "event: dashboard\ndata: {\"totalChats\":3}\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("unexpected stream:\n%q\nwant\n%q", got, want)
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatal("missing event-stream content type")
	}
}
