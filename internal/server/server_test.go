package server_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/voiceprep/internal/pipeline"
	"github.com/example/voiceprep/internal/server"
)

// stubPreprocessor implements server.Preprocessor for tests.
type stubPreprocessor struct {
	bundle []byte
	err    error

	gotWAV  []byte
	gotText string
	gotLang string
}

func (s *stubPreprocessor) Preprocess(_ context.Context, wav []byte, refText, lang string) ([]byte, error) {
	s.gotWAV = wav
	s.gotText = refText
	s.gotLang = lang

	return s.bundle, s.err
}

func postPreprocess(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/preprocess", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	return rec
}

func requestBody(audio []byte, refText, lang string) string {
	payload := map[string]string{
		"reference_audio": base64.StdEncoding.EncodeToString(audio),
		"ref_text":        refText,
		"lang":            lang,
	}

	raw, _ := json.Marshal(payload)

	return string(raw)
}

// ---------------------------------------------------------------------------
// GET /health
// ---------------------------------------------------------------------------

func TestHealth_Returns200WithStatusOK(t *testing.T) {
	h := server.NewHandler(&stubPreprocessor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("want status=ok, got %q", body["status"])
	}

	if _, ok := body["version"]; !ok {
		t.Error("want version field in response")
	}
}

// ---------------------------------------------------------------------------
// POST /preprocess
// ---------------------------------------------------------------------------

func TestPreprocess_ReturnsBundle(t *testing.T) {
	stub := &stubPreprocessor{bundle: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	h := server.NewHandler(stub)

	wav := []byte("RIFF fake wav")

	rec := postPreprocess(t, h, requestBody(wav, "你好", "zh"))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q; want application/octet-stream", ct)
	}

	if !bytes.Equal(rec.Body.Bytes(), stub.bundle) {
		t.Errorf("body = %v; want bundle bytes", rec.Body.Bytes())
	}

	if !bytes.Equal(stub.gotWAV, wav) {
		t.Error("preprocessor did not receive decoded WAV bytes")
	}

	if stub.gotText != "你好" || stub.gotLang != "zh" {
		t.Errorf("preprocessor got (%q, %q)", stub.gotText, stub.gotLang)
	}
}

func TestPreprocess_DefaultsLangToZh(t *testing.T) {
	stub := &stubPreprocessor{bundle: []byte{1}}
	h := server.NewHandler(stub)

	rec := postPreprocess(t, h, requestBody([]byte("wav"), "text", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if stub.gotLang != "zh" {
		t.Errorf("lang = %q; want zh default", stub.gotLang)
	}
}

func TestPreprocess_MethodNotAllowed(t *testing.T) {
	h := server.NewHandler(&stubPreprocessor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/preprocess", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", rec.Code)
	}
}

func TestPreprocess_RejectsInvalidJSON(t *testing.T) {
	h := server.NewHandler(&stubPreprocessor{})

	rec := postPreprocess(t, h, "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestPreprocess_RejectsMissingFields(t *testing.T) {
	h := server.NewHandler(&stubPreprocessor{})

	rec := postPreprocess(t, h, `{"ref_text":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing audio: want 400, got %d", rec.Code)
	}

	rec = postPreprocess(t, h, fmt.Sprintf(`{"reference_audio":%q}`, base64.StdEncoding.EncodeToString([]byte("x"))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing text: want 400, got %d", rec.Code)
	}
}

func TestPreprocess_RejectsBadBase64(t *testing.T) {
	h := server.NewHandler(&stubPreprocessor{})

	rec := postPreprocess(t, h, `{"reference_audio":"!!!not-base64!!!","ref_text":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestPreprocess_BodyTooLarge(t *testing.T) {
	h := server.NewHandler(&stubPreprocessor{}, server.WithMaxBodyBytes(64))

	rec := postPreprocess(t, h, requestBody(make([]byte, 4096), "hi", "en"))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}
}

func TestPreprocess_DecodeErrorMapsTo422(t *testing.T) {
	stub := &stubPreprocessor{err: fmt.Errorf("%w: not a wav", pipeline.ErrDecode)}
	h := server.NewHandler(stub)

	rec := postPreprocess(t, h, requestBody([]byte("junk"), "hi", "en"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", rec.Code)
	}
}

func TestPreprocess_InternalErrorMapsTo500(t *testing.T) {
	stub := &stubPreprocessor{err: fmt.Errorf("%w: graph exploded", pipeline.ErrInference)}
	h := server.NewHandler(stub)

	rec := postPreprocess(t, h, requestBody([]byte("wav"), "hi", "en"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}

	if body["error"] == "" {
		t.Error("want error message in JSON body")
	}
}

func TestPreprocess_TimeoutMapsTo504(t *testing.T) {
	stub := &stubPreprocessor{err: context.DeadlineExceeded}
	h := server.NewHandler(stub, server.WithRequestTimeout(time.Millisecond))

	rec := postPreprocess(t, h, requestBody([]byte("wav"), "hi", "en"))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// ParseLogLevel
// ---------------------------------------------------------------------------

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "INFO", false},
		{"info", "INFO", false},
		{"DEBUG", "DEBUG", false},
		{"warn", "WARN", false},
		{"warning", "WARN", false},
		{"error", "ERROR", false},
		{"verbose", "", true},
	}

	for _, c := range cases {
		lvl, err := server.ParseLogLevel(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevel(%q): expected error", c.in)
			}
			continue
		}

		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", c.in, err)
			continue
		}

		if lvl.String() != c.want {
			t.Errorf("ParseLogLevel(%q) = %s; want %s", c.in, lvl, c.want)
		}
	}
}
