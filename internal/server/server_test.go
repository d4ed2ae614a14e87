package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/VaibhavMttl21/ItemManager/internal/app"
	"github.com/VaibhavMttl21/ItemManager/internal/ratelimit"
	"github.com/VaibhavMttl21/ItemManager/pkg/domain"
	"github.com/VaibhavMttl21/ItemManager/pkg/storage"
	"github.com/VaibhavMttl21/ItemManager/pkg/store"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	uploads int
	fail    bool
}

func (f *fakeObjectStore) Upload(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	f.uploads++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return "", errors.New("storage unavailable")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "https://img.example/" + string(raw), nil
}

func (f *fakeObjectStore) Delete(context.Context, string) error { return nil }

func (f *fakeObjectStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

type recordingStore struct {
	*store.MemoryStore
	mu    sync.Mutex
	saves int
}

func (s *recordingStore) SaveItem(item domain.Item) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.MemoryStore.SaveItem(item)
}

func (s *recordingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeNotifier) SendEnquiry(context.Context, domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	srv      *httptest.Server
	store    *recordingStore
	objects  *fakeObjectStore
	notifier *fakeNotifier
	dir      string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	dir := t.TempDir()
	stager, err := storage.NewStager(dir)
	if err != nil {
		t.Fatalf("new stager: %v", err)
	}
	dataStore := &recordingStore{MemoryStore: store.NewMemoryStore()}
	objects := &fakeObjectStore{}
	notifier := &fakeNotifier{}
	appCore, err := app.New(app.Config{
		Store:    dataStore,
		Objects:  objects,
		Stager:   stager,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg.App = appCore
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: dataStore, objects: objects, notifier: notifier, dir: dir}
}

type filePart struct {
	field       string
	name        string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, url string, fields map[string]string, files []filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := io.WriteString(part, f.body); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, resp *http.Response) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error, body.Code
}

func validFields() map[string]string {
	return map[string]string{
		"name":        "Blue Jacket",
		"type":        "Shirt",
		"description": "Warm winter jacket",
	}
}

func coverPart() filePart {
	return filePart{field: "coverImage", name: "cover.jpg", contentType: "image/jpeg", body: "cover"}
}

func TestCreateItem(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := multipartRequest(t, env.srv.URL+"/api/items", validFields(), []filePart{
		coverPart(),
		{field: "images", name: "a.png", contentType: "image/png", body: "img-a"},
		{field: "images", name: "b.png", contentType: "image/png", body: "img-b"},
	})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		Message string      `json:"message"`
		Item    domain.Item `json:"item"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Message != "Item successfully added" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.Item.CoverImage == "" || len(body.Item.Images) != 2 {
		t.Fatalf("unexpected item payload: %+v", body.Item)
	}
	if body.Item.Images[0] != "https://img.example/img-a" || body.Item.Images[1] != "https://img.example/img-b" {
		t.Fatalf("image order lost: %v", body.Item.Images)
	}
	entries, err := os.ReadDir(env.dir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staged files left behind: %d", len(entries))
	}
}

func TestCreateItemMissingCover(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := multipartRequest(t, env.srv.URL+"/api/items", validFields(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if _, code := decodeError(t, resp); code != "ITEM_COVER_REQUIRED" {
		t.Fatalf("unexpected error code %q", code)
	}
	if env.objects.uploadCount() != 0 {
		t.Fatal("storage must not be called without a cover image")
	}
	if env.store.saveCount() != 0 {
		t.Fatal("repository must not be called without a cover image")
	}
}

func TestCreateItemMissingFields(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := multipartRequest(t, env.srv.URL+"/api/items",
		map[string]string{"name": "Blue Jacket"}, []filePart{coverPart()})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateItemRejectsPDFCover(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := multipartRequest(t, env.srv.URL+"/api/items", validFields(), []filePart{
		{field: "coverImage", name: "cover.jpg", contentType: "application/pdf", body: "pdf bytes"},
	})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if _, code := decodeError(t, resp); code != "ITEM_UNSUPPORTED_FILE_TYPE" {
		t.Fatalf("unexpected error code %q", code)
	}
	if env.objects.uploadCount() != 0 {
		t.Fatal("filter must reject before any upload attempt")
	}
}

func TestCreateItemUploadFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.objects.fail = true

	req := multipartRequest(t, env.srv.URL+"/api/items", validFields(), []filePart{coverPart()})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if _, code := decodeError(t, resp); code != "ITEM_UPLOAD_FAILED" {
		t.Fatalf("unexpected error code %q", code)
	}
	items, _ := env.store.ListItems()
	if len(items) != 0 {
		t.Fatalf("no item may be visible after a failed upload: %+v", items)
	}
}

func TestListItemsNewestFirst(t *testing.T) {
	env := newTestEnv(t, Config{})
	older := domain.Item{ID: "a", Name: "Old", Type: domain.TypeBooks, CoverImage: "https://img.example/a",
		Images: []string{}, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := domain.Item{ID: "b", Name: "New", Type: domain.TypeShoes, CoverImage: "https://img.example/b",
		Images: []string{}, CreatedAt: time.Now().UTC()}
	_ = env.store.MemoryStore.SaveItem(older)
	_ = env.store.MemoryStore.SaveItem(newer)

	resp, err := http.Get(env.srv.URL + "/api/items")
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var items []domain.Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 2 || items[0].ID != "b" || items[1].ID != "a" {
		t.Fatalf("expected newest first, got %+v", items)
	}
}

func TestGetItemNotFound(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp, err := http.Get(env.srv.URL + "/api/items/missing")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if _, code := decodeError(t, resp); code != "ITEM_NOT_FOUND" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t, Config{})
	item := domain.Item{ID: "item-1", Name: "Lamp", Type: domain.TypeHomeGarden,
		CoverImage: "https://img.example/lamp", Images: []string{}, CreatedAt: time.Now().UTC()}
	_ = env.store.MemoryStore.SaveItem(item)

	resp, err := http.Get(env.srv.URL + "/api/items/item-1")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got domain.Item
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if got.ID != "item-1" || got.Type != domain.TypeHomeGarden {
		t.Fatalf("unexpected item: %+v", got)
	}
}

func TestEnquireUnknownItem(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp, err := http.Post(env.srv.URL+"/api/items/missing/enquire", "application/json", nil)
	if err != nil {
		t.Fatalf("post enquire: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if env.notifier.callCount() != 0 {
		t.Fatal("notifier must not be invoked for unknown items")
	}
}

func TestEnquire(t *testing.T) {
	env := newTestEnv(t, Config{})
	item := domain.Item{ID: "item-1", Name: "Lamp", Type: domain.TypeHomeGarden,
		CoverImage: "https://img.example/lamp", CreatedAt: time.Now().UTC()}
	_ = env.store.MemoryStore.SaveItem(item)

	resp, err := http.Post(env.srv.URL+"/api/items/item-1/enquire", "application/json", nil)
	if err != nil {
		t.Fatalf("post enquire: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Message != "Enquiry sent successfully" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if env.notifier.callCount() != 1 {
		t.Fatalf("expected one notification, got %d", env.notifier.callCount())
	}
}

func TestEnquireDeliveryFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	item := domain.Item{ID: "item-1", Name: "Lamp", Type: domain.TypeHomeGarden,
		CoverImage: "https://img.example/lamp", CreatedAt: time.Now().UTC()}
	_ = env.store.MemoryStore.SaveItem(item)
	env.notifier.err = errors.New("relay refused")

	resp, err := http.Post(env.srv.URL+"/api/items/item-1/enquire", "application/json", nil)
	if err != nil {
		t.Fatalf("post enquire: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if _, code := decodeError(t, resp); code != "ENQUIRY_DELIVERY_FAILED" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestEnquireRateLimited(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:items:enquiry", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	env := newTestEnv(t, Config{EnquiryLimiter: limiter})

	first, err := http.Post(env.srv.URL+"/api/items/missing/enquire", "application/json", nil)
	if err != nil {
		t.Fatalf("first enquire: %v", err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusNotFound {
		t.Fatalf("first request expected 404, got %d", first.StatusCode)
	}

	second, err := http.Post(env.srv.URL+"/api/items/missing/enquire", "application/json", nil)
	if err != nil {
		t.Fatalf("second enquire: %v", err)
	}
	defer second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", second.StatusCode)
	}
	if _, code := decodeError(t, second); code != "REQUEST_RATE_LIMITED" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestItemsMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, Config{})

	req, _ := http.NewRequest(http.MethodDelete, env.srv.URL+"/api/items", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete items: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-Id"); got == "" {
		t.Fatal("expected request id header on responses")
	}
}
