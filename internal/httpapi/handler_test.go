package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/duckworks/geminiduck/internal/auth"
	"github.com/duckworks/geminiduck/internal/bot"
	"github.com/duckworks/geminiduck/internal/gemini"
	"github.com/duckworks/geminiduck/internal/history"
	"github.com/duckworks/geminiduck/internal/render"
	"github.com/duckworks/geminiduck/internal/store"
)

// fakeService is a minimal bot surface for handler tests.
type fakeService struct {
	resp  *bot.Response
	err   error
	got   bot.Request
	calls int
}

func (f *fakeService) Handle(_ context.Context, req bot.Request) (*bot.Response, error) {
	f.calls++
	f.got = req
	if req.OnState != nil {
		req.OnState(bot.StateCompleting)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeAssetStore struct {
	files   map[string]string // id -> path on disk
	removed []string
}

func (f *fakeAssetStore) Acquire(id string) (string, func(), error) {
	path, ok := f.files[id]
	if !ok {
		return "", nil, &store.Error{Kind: store.KindNotFound, Op: "acquire", Path: id}
	}
	return path, func() {}, nil
}

func (f *fakeAssetStore) Remove(id string) error {
	if _, ok := f.files[id]; !ok {
		return &store.Error{Kind: store.KindNotFound, Op: "remove", Path: id}
	}
	delete(f.files, id)
	f.removed = append(f.removed, id)
	return nil
}

type fakeHistory struct {
	entries  []history.Exchange
	err      error
	gotLimit int
}

func (f *fakeHistory) Recent(limit int) ([]history.Exchange, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func okResponse() *bot.Response {
	return &bot.Response{
		RequestID:    "req-1",
		Text:         "hello there",
		Chunks:       []string{"hello there"},
		Model:        "fake-model",
		FinishReason: "COMPLETE",
		Latency:      1500 * time.Millisecond,
	}
}

func newTestRouter(svc Service, assets AssetStore, hist HistoryReader) http.Handler {
	return NewHandler(svc, assets, hist).Routes(auth.NewService(""))
}

func TestCreateMessage(t *testing.T) {
	svc := &fakeService{resp: okResponse()}
	router := newTestRouter(svc, &fakeAssetStore{}, nil)

	body := bytes.NewBufferString(`{"prompt":"hi","mode":"TEXT","context":[{"role":"user","text":"before"},{"role":"model","text":"answer"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp messageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Text != "hello there" || resp.FinishReason != "COMPLETE" {
		t.Errorf("response = %+v", resp)
	}
	if resp.LatencyMS != 1500 {
		t.Errorf("latency_ms = %d, want 1500", resp.LatencyMS)
	}

	if svc.got.Prompt != "hi" || svc.got.Mode != bot.ModeText {
		t.Errorf("bot request = %+v", svc.got)
	}
	if len(svc.got.Context) != 2 || svc.got.Context[0].Role != gemini.RoleUser {
		t.Errorf("context = %+v", svc.got.Context)
	}
}

func TestCreateMessage_InvalidBody(t *testing.T) {
	router := newTestRouter(&fakeService{resp: okResponse()}, &fakeAssetStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateMessage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"invalid request", &gemini.APIError{Kind: gemini.KindInvalidRequest, Message: "empty"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"rate limited", &gemini.APIError{Kind: gemini.KindRateLimited, Message: "quota"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"timeout", &gemini.APIError{Kind: gemini.KindTimeout, Message: "deadline"}, http.StatusGatewayTimeout, "TIMEOUT"},
		{"upstream auth", &gemini.APIError{Kind: gemini.KindAuth, Message: "bad key"}, http.StatusBadGateway, "AUTH"},
		{"server error", &gemini.APIError{Kind: gemini.KindServerError, Message: "boom"}, http.StatusBadGateway, "SERVER_ERROR"},
		{"layout overflow", &render.Error{Kind: render.KindLayoutOverflow, Message: "too long"}, http.StatusUnprocessableEntity, "LAYOUT_OVERFLOW"},
		{"font unavailable", &render.Error{Kind: render.KindFontUnavailable, Message: "no font"}, http.StatusInternalServerError, "FONT_UNAVAILABLE"},
		{"plain error", context.Canceled, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeService{err: tt.err}, &fakeAssetStore{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"prompt":"hi"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["kind"] != tt.wantKind {
				t.Errorf("kind = %q, want %q", body["kind"], tt.wantKind)
			}
		})
	}
}

func TestGetAsset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "card-1.png")
	if err := os.WriteFile(path, []byte("fake png bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	assets := &fakeAssetStore{files: map[string]string{"card-1.png": path}}
	router := newTestRouter(&fakeService{resp: okResponse()}, assets, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/assets/card-1.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "fake png bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
}

func TestGetAsset_NotFound(t *testing.T) {
	router := newTestRouter(&fakeService{resp: okResponse()}, &fakeAssetStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/assets/missing.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["kind"] != "NOT_FOUND" {
		t.Errorf("kind = %q, want NOT_FOUND", body["kind"])
	}
}

func TestDeleteAsset(t *testing.T) {
	assets := &fakeAssetStore{files: map[string]string{"card-1.png": "/tmp/card-1.png"}}
	router := newTestRouter(&fakeService{resp: okResponse()}, assets, nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/assets/card-1.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(assets.removed) != 1 || assets.removed[0] != "card-1.png" {
		t.Errorf("removed = %v", assets.removed)
	}

	// Deleting again is a 404.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/assets/card-1.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestGetHistory(t *testing.T) {
	hist := &fakeHistory{entries: []history.Exchange{
		{
			ID:        "ex-1",
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Prompt:    "q",
			Reply:     "a",
			Mode:      "TEXT",
		},
	}}
	router := newTestRouter(&fakeService{resp: okResponse()}, &fakeAssetStore{}, hist)

	req := httptest.NewRequest(http.MethodGet, "/v1/history?limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if hist.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", hist.gotLimit)
	}

	var body struct {
		Exchanges []historyEntry `json:"exchanges"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Exchanges) != 1 || body.Exchanges[0].CreatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("exchanges = %+v", body.Exchanges)
	}
}

func TestGetHistory_LimitClamping(t *testing.T) {
	hist := &fakeHistory{}
	router := newTestRouter(&fakeService{resp: okResponse()}, &fakeAssetStore{}, hist)

	for _, q := range []string{"?limit=0", "?limit=500", "?limit=abc", ""} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history"+q, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d for %q", rec.Code, q)
		}
		if hist.gotLimit != 20 {
			t.Errorf("limit = %d for %q, want 20", hist.gotLimit, q)
		}
	}
}

func TestGetHistory_Disabled(t *testing.T) {
	router := newTestRouter(&fakeService{resp: okResponse()}, &fakeAssetStore{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthzSkipsAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("duck-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	router := NewHandler(&fakeService{resp: okResponse()}, &fakeAssetStore{}, nil).Routes(auth.NewService(string(hash)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without credentials", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"prompt":"hi"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("messages status = %d, want 401 without credentials", rec.Code)
	}
}

func TestChatWS(t *testing.T) {
	svc := &fakeService{resp: okResponse()}
	srv := httptest.NewServer(newTestRouter(svc, &fakeAssetStore{}, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(chatWSInMessage{Prompt: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out chatWSOutMessage
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Type != "status" || out.State != bot.StateCompleting {
		t.Fatalf("frame = %+v, want a COMPLETING status first", out)
	}

	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Type != "response" || out.Response == nil || out.Response.Text != "hello there" {
		t.Fatalf("frame = %+v, want a response frame", out)
	}

	// The second message carries the accumulated conversation.
	if err := conn.WriteJSON(chatWSInMessage{Prompt: "and then?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 2; i++ { // status then response
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if len(svc.got.Context) != 2 {
		t.Fatalf("second request context = %+v, want the first exchange", svc.got.Context)
	}
	if svc.got.Context[0].Text != "hello" || svc.got.Context[1].Text != "hello there" {
		t.Errorf("context turns = %+v", svc.got.Context)
	}
}

func TestChatWS_InvalidInput(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&fakeService{resp: okResponse()}, &fakeAssetStore{}, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out chatWSOutMessage
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Type != "error" || out.Kind != "INVALID_REQUEST" {
		t.Errorf("frame = %+v, want an INVALID_REQUEST error", out)
	}

	if err := conn.WriteJSON(chatWSInMessage{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Type != "error" || !strings.Contains(out.Error, "prompt required") {
		t.Errorf("frame = %+v, want prompt required", out)
	}
}
