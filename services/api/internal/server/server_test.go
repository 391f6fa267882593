package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"pillid/pkg/classify"
	"pillid/pkg/fda"
	"pillid/pkg/result"
	"pillid/pkg/storage"
	"pillid/pkg/store"
	"pillid/pkg/vision"
	"pillid/services/api/internal/app"
)

type fakeLookup struct {
	labels []fda.Label
	fail   bool
}

func (f *fakeLookup) list() result.Result[[]fda.Label] {
	if f.fail {
		return result.Failed[[]fda.Label](errors.New("upstream down"))
	}
	if len(f.labels) == 0 {
		return result.Empty[[]fda.Label]()
	}
	return result.Found(f.labels)
}

func (f *fakeLookup) one() result.Result[fda.Label] {
	if v, ok := f.list().Get(); ok {
		return result.Found(v[0])
	}
	return result.Empty[fda.Label]()
}

func (f *fakeLookup) SearchByNDC(context.Context, string) result.Result[fda.Label] { return f.one() }
func (f *fakeLookup) SearchByName(context.Context, string, int) result.Result[[]fda.Label] {
	return f.list()
}
func (f *fakeLookup) SearchGeneric(context.Context, string, int) result.Result[[]fda.Label] {
	return f.list()
}
func (f *fakeLookup) SearchByActiveIngredient(context.Context, string, int) result.Result[[]fda.Label] {
	return f.list()
}
func (f *fakeLookup) GetByManufacturer(context.Context, string, int) result.Result[[]fda.Label] {
	return f.list()
}
func (f *fakeLookup) GetByApplicationNumber(context.Context, string) result.Result[fda.Label] {
	return f.one()
}

type fakeVision struct{}

func (fakeVision) Annotate(context.Context, []byte, ...vision.Feature) result.Result[vision.Annotation] {
	return result.Found(vision.Annotation{
		Labels:  []string{"Pill"},
		Colors:  []classify.ScoredColor{{Red: 250, Green: 250, Blue: 250, Score: 1}},
		Objects: []classify.Detection{{Name: "Circle", Score: 0.9}},
	})
}

type testEnv struct {
	srv    *httptest.Server
	redis  *miniredis.Miniredis
	lookup *fakeLookup
}

func newTestEnv(t *testing.T, authLimit int) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions, err := store.NewJWTSessionStore(strings.Repeat("k", 32), time.Hour, store.NewRedisTokenRevoker(client, time.Hour), store.JWTOptions{})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	objects, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	lookup := &fakeLookup{}
	core, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: sessions,
		Lookup:   lookup,
		Vision:   fakeVision{},
		Objects:  objects,
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	s, err := New(Config{App: core, Redis: client, AuthRateLimitPerMinute: authLimit, ScanRateLimitPerMinute: 100})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, redis: mr, lookup: lookup}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.send(t, req, token)
}

func (e *testEnv) send(t *testing.T, req *http.Request, token string) (*http.Response, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) signUp(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": email, "password": "pill finder 42"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d body = %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("signup returned no token: %v", body)
	}
	return token
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, 10)

	resp, body := env.do(t, http.MethodGet, "/api/users/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "unauthorized" {
		t.Fatalf("anonymous me = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-Id") == "" || resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("middleware headers missing: %v", resp.Header)
	}

	token := env.signUp(t, "me@example.com")
	resp, body = env.do(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	profile, _ := body["profile"].(map[string]any)
	if profile["email"] != "me@example.com" {
		t.Fatalf("unexpected me body: %v", body)
	}

	resp, body = env.do(t, http.MethodPatch, "/api/users/me", token, map[string]any{"firstName": "Mia"})
	if resp.StatusCode != http.StatusOK || body["firstName"] != "Mia" {
		t.Fatalf("patch me = %d %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "me@example.com", "password": "pill finder 42"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "me@example.com", "password": "nope nope 1"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/api/auth/session", token, nil)
	if resp.StatusCode != http.StatusOK || body["userId"] == "" {
		t.Fatalf("session = %d %v", resp.StatusCode, body)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("token still valid after logout: %d", resp.StatusCode)
	}
}

func TestLogoutAllSessions(t *testing.T) {
	env := newTestEnv(t, 10)
	token := env.signUp(t, "many@example.com")
	resp, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "many@example.com", "password": "pill finder 42"})
	second, _ := body["token"].(string)
	if resp.StatusCode != http.StatusOK || second == "" {
		t.Fatalf("login = %d %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout?all=true", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout all status = %d", resp.StatusCode)
	}
	for _, tok := range []string{token, second} {
		resp, _ = env.do(t, http.MethodGet, "/api/users/me", tok, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token still valid after logout all: %d", resp.StatusCode)
		}
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)
	env.signUp(t, "rl@example.com")

	creds := map[string]string{"email": "rl@example.com", "password": "pill finder 42"}
	resp, _ := env.do(t, http.MethodPost, "/api/auth/login", "", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first login = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second login = %d", resp.StatusCode)
	}
	resp, body := env.do(t, http.MethodPost, "/api/auth/login", "", creds)
	if resp.StatusCode != http.StatusTooManyRequests || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("third login = %d %v", resp.StatusCode, body)
	}
}

func TestRateLimiterDownFailsClosed(t *testing.T) {
	env := newTestEnv(t, 10)
	env.redis.Close()
	resp, _ := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "x@example.com", "password": "pill finder 42"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestBarcodeScanAndHistory(t *testing.T) {
	env := newTestEnv(t, 10)
	token := env.signUp(t, "scan@example.com")

	resp, body := env.do(t, http.MethodPost, "/api/scans/barcode", token, map[string]string{"type": "upc_a", "data": "ibuprofen"})
	if resp.StatusCode != http.StatusOK || body["successful"] != false || body["message"] != "No medication found." {
		t.Fatalf("no-match scan = %d %v", resp.StatusCode, body)
	}

	env.lookup.labels = []fda.Label{{OpenFDA: fda.OpenFDA{BrandName: []string{"Advil"}}}}
	resp, body = env.do(t, http.MethodPost, "/api/scans/barcode", token, map[string]string{"type": "upc_a", "data": "0573016430"})
	if resp.StatusCode != http.StatusOK || body["successful"] != true {
		t.Fatalf("match scan = %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/scans/barcode", token, map[string]string{"data": " "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty scan = %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/scans?limit=1", token, nil)
	scans, _ := body["scans"].([]any)
	if resp.StatusCode != http.StatusOK || len(scans) != 1 {
		t.Fatalf("history = %d %v", resp.StatusCode, body)
	}
	latest, _ := scans[0].(map[string]any)
	if latest["isSuccessful"] != true || latest["medication"] == nil {
		t.Fatalf("newest scan should be the match: %v", latest)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/scans?limit=zero", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", resp.StatusCode)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPillScanStoresImage(t *testing.T) {
	env := newTestEnv(t, 10)
	token := env.signUp(t, "pill@example.com")
	env.lookup.labels = []fda.Label{{OpenFDA: fda.OpenFDA{BrandName: []string{"Tylenol"}}}}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("image", "pill.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(pngBytes(t))
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/scans/pill", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, body := env.send(t, req, token)
	if resp.StatusCode != http.StatusOK || body["successful"] != true {
		t.Fatalf("pill scan = %d %v", resp.StatusCode, body)
	}
	medID, _ := body["medicationId"].(string)
	if medID == "" || body["imageKey"] == "" {
		t.Fatalf("expected stored medication and image: %v", body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/medications/"+medID+"/image", token, nil)
	url, _ := body["url"].(string)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(url, "file://") {
		t.Fatalf("image url = %d %v", resp.StatusCode, body)
	}

	req, _ = http.NewRequest(http.MethodPost, env.srv.URL+"/api/scans/imprint", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	resp, _ = env.send(t, req, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing image = %d", resp.StatusCode)
	}
}

func TestMedicationsAndSaved(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := env.signUp(t, "owner@example.com")
	other := env.signUp(t, "other@example.com")

	resp, med := env.do(t, http.MethodPost, "/api/medications", owner, map[string]any{"name": "Lisinopril", "imprint": "W 10", "color": "pink"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d %v", resp.StatusCode, med)
	}
	id, _ := med["id"].(string)

	resp, body := env.do(t, http.MethodGet, "/api/medications?imprint=w%2010&color=pink", other, nil)
	meds, _ := body["medications"].([]any)
	if resp.StatusCode != http.StatusOK || len(meds) != 1 {
		t.Fatalf("search = %d %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPatch, "/api/medications/"+id, other, map[string]any{"color": "red"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign patch = %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodPatch, "/api/medications/"+id, owner, map[string]any{"shape": "round"})
	if resp.StatusCode != http.StatusOK || body["shape"] != "round" || body["color"] != "pink" {
		t.Fatalf("patch = %d %v", resp.StatusCode, body)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/medications/"+id+"/image", owner, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("image without key = %d", resp.StatusCode)
	}

	resp, saved := env.do(t, http.MethodPost, "/api/saved", other, map[string]any{
		"medicationId":      id,
		"reminderEnabled":   true,
		"reminderFrequency": map[string]string{"schedule": "0 9 * * 1-5", "timezone": "Europe/Berlin"},
	})
	if resp.StatusCode != http.StatusCreated || saved["nextReminder"] == nil {
		t.Fatalf("save = %d %v", resp.StatusCode, saved)
	}
	resp, body = env.do(t, http.MethodPost, "/api/saved", other, map[string]any{
		"medicationId":      id,
		"reminderEnabled":   true,
		"reminderFrequency": map[string]string{"schedule": "every day"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad schedule = %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/saved", other, nil)
	list, _ := body["saved"].([]any)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("list saved = %d %v", resp.StatusCode, body)
	}
	savedID, _ := saved["id"].(string)
	resp, _ = env.do(t, http.MethodDelete, "/api/saved/"+savedID, owner, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign unsave = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/api/saved/"+savedID, other, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unsave = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/medications/"+id, owner, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/medications/"+id, owner, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted = %d", resp.StatusCode)
	}
}

func TestLookupEndpoint(t *testing.T) {
	env := newTestEnv(t, 10)
	token := env.signUp(t, "lookup@example.com")

	resp, _ := env.do(t, http.MethodGet, "/api/lookup", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("no query = %d", resp.StatusCode)
	}

	env.lookup.labels = []fda.Label{{OpenFDA: fda.OpenFDA{GenericName: []string{"ibuprofen"}}}}
	resp, body := env.do(t, http.MethodGet, "/api/lookup?ingredient=ibuprofen&limit=5", token, nil)
	results, _ := body["results"].([]any)
	if resp.StatusCode != http.StatusOK || len(results) != 1 {
		t.Fatalf("lookup = %d %v", resp.StatusCode, body)
	}

	env.lookup.fail = true
	resp, body = env.do(t, http.MethodGet, "/api/lookup?name=advil", token, nil)
	results, ok := body["results"].([]any)
	if resp.StatusCode != http.StatusOK || !ok || len(results) != 0 {
		t.Fatalf("failed lookup = %d %v", resp.StatusCode, body)
	}

	env.lookup.fail = false
	resp, body = env.do(t, http.MethodGet, "/api/lookup?ndc=%20&ingredient=ibuprofen", token, nil)
	results, _ = body["results"].([]any)
	if resp.StatusCode != http.StatusOK || len(results) != 1 {
		t.Fatalf("blank ndc lookup = %d %v", resp.StatusCode, body)
	}
}

func TestNewRequiresRedis(t *testing.T) {
	sessions, err := store.NewJWTSessionStore(strings.Repeat("k", 32), time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	core, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: sessions,
		Lookup:   &fakeLookup{},
		Vision:   fakeVision{},
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	if _, err := New(Config{App: core}); err == nil {
		t.Fatalf("expected limiter init to fail without redis")
	}
}
