package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/attachments"
	"fintrack/internal/auth"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type testEnv struct {
	ts        *httptest.Server
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLog(t, io.Discard)
}

// newTestEnvWithLog sends the server's structured logs to logOut.
func newTestEnvWithLog(t *testing.T, logOut io.Writer) *testEnv {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	uploadDir := t.TempDir()
	files, err := attachments.NewStore(uploadDir, 1024)
	if err != nil {
		t.Fatalf("attachment store: %v", err)
	}

	sessions := auth.NewSessionManager(repo, "test-session-secret-0123", 15*time.Minute)
	svc := Services{
		Auth:         services.NewAuthService(repo, sessions, auth.RegistrationKeys{Admin: "admin-key", User: "user-key"}),
		Transactions: services.NewTransactionService(repo, files, nil, nil),
		Categories:   services.NewCategoryService(repo),
		Planner:      services.NewPlannerService(repo),
		DB:           repo,
	}
	logger := applog.New(applog.Config{Output: logOut, JSON: true})

	srv, err := NewServer(Config{RateLimitPerMinute: 1000, MaxUploadBytes: 1024}, svc, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testEnv{ts: ts, uploadDir: uploadDir}
}

type apiClient struct {
	t    *testing.T
	base string
	c    *http.Client
}

func (e *testEnv) client(t *testing.T) *apiClient {
	jar, _ := cookiejar.New(nil)
	return &apiClient{t: t, base: e.ts.URL, c: &http.Client{Jar: jar}}
}

func (a *apiClient) send(req *http.Request) *http.Response {
	a.t.Helper()
	resp, err := a.c.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *apiClient) json(method, path string, body any) *http.Response {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, a.base+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req)
}

func (a *apiClient) upload(path string, fields map[string]string, filename string, content []byte) *http.Response {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, _ := mw.CreateFormFile("attachment", filename)
	_, _ = fw.Write(content)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, a.base+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.send(req)
}

func (a *apiClient) register(username, key string) {
	a.t.Helper()
	resp := a.json(http.MethodPost, "/register", map[string]string{
		"username": username, "password": "secret-" + username, "registration_key": key,
	})
	expectStatus(a.t, resp, http.StatusCreated)
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", resp.Request.URL.Path, err)
	}
}

func TestAdminStatsScenario(t *testing.T) {
	env := newTestEnv(t)
	admin := env.client(t)

	resp := admin.json(http.MethodPost, "/register", map[string]string{
		"username": "root", "password": "secret-root", "registration_key": "admin-key",
	})
	expectStatus(t, resp, http.StatusCreated)
	var reg struct {
		Role string `json:"role"`
	}
	decodeBody(t, resp, &reg)
	if reg.Role != "admin" {
		t.Fatalf("role = %q, want admin", reg.Role)
	}

	expectStatus(t, admin.json(http.MethodPost, "/api/transactions", map[string]any{
		"amount": 100, "type": "income", "category": "Salary", "date": "2024-05-01",
	}), http.StatusCreated)
	expectStatus(t, admin.json(http.MethodPost, "/api/transactions", map[string]any{
		"amount": "40", "type": "expense", "category": "Food & Dining", "date": "2024-05-02",
	}), http.StatusCreated)

	resp = admin.json(http.MethodGet, "/api/stats", nil)
	expectStatus(t, resp, http.StatusOK)
	type categoryTotal struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
	}
	var stats struct {
		TotalIncome       float64         `json:"total_income"`
		TotalExpenses     float64         `json:"total_expenses"`
		Balance           float64         `json:"balance"`
		IncomeByCategory  []categoryTotal `json:"income_by_category"`
		ExpenseByCategory []categoryTotal `json:"expense_by_category"`
		ByPeriod          []struct {
			Period  string  `json:"period"`
			Balance float64 `json:"balance"`
		} `json:"by_period"`
	}
	decodeBody(t, resp, &stats)
	if stats.TotalIncome != 100 || stats.TotalExpenses != 40 || stats.Balance != 60 {
		t.Errorf("stats = %+v, want 100/40/60", stats)
	}
	if len(stats.IncomeByCategory) != 1 || stats.IncomeByCategory[0] != (categoryTotal{"Salary", 100}) {
		t.Errorf("income_by_category = %+v", stats.IncomeByCategory)
	}
	if len(stats.ExpenseByCategory) != 1 || stats.ExpenseByCategory[0] != (categoryTotal{"Food & Dining", 40}) {
		t.Errorf("expense_by_category = %+v", stats.ExpenseByCategory)
	}
	if len(stats.ByPeriod) != 1 || stats.ByPeriod[0].Period != "2024-05" || stats.ByPeriod[0].Balance != 60 {
		t.Errorf("by_period = %+v", stats.ByPeriod)
	}

	user := env.client(t)
	user.register("alice", "user-key")
	expectStatus(t, user.json(http.MethodGet, "/api/stats", nil), http.StatusForbidden)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	expectStatus(t, c.json(http.MethodGet, "/api/me", nil), http.StatusUnauthorized)
	expectStatus(t, c.json(http.MethodPost, "/register", map[string]string{
		"username": "mallory", "password": "secret-mallory", "registration_key": "guess",
	}), http.StatusForbidden)
	expectStatus(t, c.json(http.MethodPost, "/register", map[string]string{
		"username": "mallory",
	}), http.StatusBadRequest)

	c.register("bob", "user-key")
	expectStatus(t, c.json(http.MethodPost, "/register", map[string]string{
		"username": "bob", "password": "secret-bob", "registration_key": "user-key",
	}), http.StatusConflict)

	resp := c.json(http.MethodGet, "/api/me", nil)
	expectStatus(t, resp, http.StatusOK)
	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	decodeBody(t, resp, &me)
	if me.Username != "bob" || me.Role != "user" {
		t.Errorf("me = %+v", me)
	}

	var sessionCookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.CookieName {
			sessionCookie = ck
		}
	}
	if sessionCookie == nil || !sessionCookie.HttpOnly || sessionCookie.MaxAge != 900 {
		t.Errorf("session cookie = %+v, want HttpOnly with a 900s max age", sessionCookie)
	}

	expectStatus(t, c.json(http.MethodGet, "/logout", nil), http.StatusOK)
	expectStatus(t, c.json(http.MethodGet, "/api/me", nil), http.StatusUnauthorized)

	expectStatus(t, c.json(http.MethodPost, "/login", map[string]string{
		"username": "bob", "password": "wrong-password",
	}), http.StatusUnauthorized)
	expectStatus(t, c.json(http.MethodPost, "/login", map[string]string{
		"username": "bob", "password": "secret-bob",
	}), http.StatusOK)
	expectStatus(t, c.json(http.MethodGet, "/api/me", nil), http.StatusOK)
}

func TestAttachmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	alice.register("alice", "user-key")
	bob := env.client(t)
	bob.register("bob", "user-key")

	fields := map[string]string{"amount": "12.50", "type": "expense", "category": "Healthcare", "date": "2024-06-01"}

	expectStatus(t, alice.upload("/api/transactions", fields, "setup.exe", []byte("MZ")), http.StatusBadRequest)
	expectStatus(t, alice.upload("/api/transactions", fields, "huge.pdf", bytes.Repeat([]byte("x"), 2048)), http.StatusRequestEntityTooLarge)
	if entries, _ := os.ReadDir(env.uploadDir); len(entries) != 0 {
		t.Fatalf("rejected uploads left %d files behind", len(entries))
	}

	pdf := []byte("%PDF-1.4 receipt")
	resp := alice.upload("/api/transactions", fields, "receipt.pdf", pdf)
	expectStatus(t, resp, http.StatusCreated)
	var created struct {
		ID          int64 `json:"id"`
		Transaction struct {
			AttachmentPath string `json:"attachment_path"`
		} `json:"transaction"`
	}
	decodeBody(t, resp, &created)
	key := created.Transaction.AttachmentPath
	if !strings.HasSuffix(key, "_receipt.pdf") {
		t.Fatalf("storage key = %q", key)
	}

	resp = alice.json(http.MethodGet, "/api/attachments/"+key, nil)
	expectStatus(t, resp, http.StatusOK)
	got, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(got, pdf) {
		t.Errorf("attachment body = %q", got)
	}

	expectStatus(t, bob.json(http.MethodGet, "/api/attachments/"+key, nil), http.StatusNotFound)
	expectStatus(t, bob.json(http.MethodDelete, "/api/transactions/"+strconv.FormatInt(created.ID, 10), nil), http.StatusForbidden)
	expectStatus(t, alice.json(http.MethodDelete, "/api/transactions/999", nil), http.StatusNotFound)

	resp = alice.json(http.MethodDelete, "/api/transactions/"+strconv.FormatInt(created.ID, 10), nil)
	expectStatus(t, resp, http.StatusOK)
	var deleted map[string]any
	decodeBody(t, resp, &deleted)
	if _, ok := deleted["warnings"]; ok {
		t.Errorf("unexpected warnings: %v", deleted["warnings"])
	}

	expectStatus(t, alice.json(http.MethodGet, "/api/attachments/"+key, nil), http.StatusNotFound)
}

func TestTransactionsScopingAndCSV(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	alice.register("alice", "user-key")
	bob := env.client(t)
	bob.register("bob", "user-key")

	expectStatus(t, alice.json(http.MethodPost, "/api/transactions", map[string]any{
		"amount": "9.99", "type": "expense", "category": "Transport", "date": "2024-02-10",
		"description": `Taxi, "late night"`,
	}), http.StatusCreated)
	expectStatus(t, alice.json(http.MethodPost, "/api/transactions", map[string]any{
		"amount": "5", "type": "income", "category": "Gift", "date": "2024-02-11",
	}), http.StatusForbidden)

	var list []map[string]any
	resp := bob.json(http.MethodGet, "/api/transactions", nil)
	expectStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &list)
	if len(list) != 0 {
		t.Errorf("bob sees %d transactions, want 0", len(list))
	}

	expectStatus(t, alice.json(http.MethodGet, "/api/transactions?type=bogus", nil), http.StatusBadRequest)

	resp = alice.json(http.MethodGet, "/api/download-csv?type=expense&start_date=2024-02-01&end_date=2024-02-29", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=transactions_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := [][]string{
		{"Date", "User", "Type", "Category", "Description", "Amount"},
		{"2024-02-10", "alice", "expense", "Transport", `Taxi, "late night"`, "9.99"},
	}
	if len(records) != len(want) {
		t.Fatalf("csv rows = %v", records)
	}
	for i := range want {
		if strings.Join(records[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, records[i], want[i])
		}
	}
}

func TestCategoriesAndPlanner(t *testing.T) {
	env := newTestEnv(t)
	admin := env.client(t)
	admin.register("root", "admin-key")
	user := env.client(t)
	user.register("carol", "user-key")

	expectStatus(t, user.json(http.MethodPost, "/api/categories", map[string]string{"name": "Pets", "type": "expense"}), http.StatusForbidden)

	resp := admin.json(http.MethodPost, "/api/categories", map[string]string{"name": "Pets", "type": "expense"})
	expectStatus(t, resp, http.StatusCreated)
	var cat struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &cat)
	expectStatus(t, admin.json(http.MethodPost, "/api/categories", map[string]string{"name": "Pets", "type": "expense"}), http.StatusConflict)

	expectStatus(t, user.json(http.MethodPost, "/api/transactions", map[string]any{
		"amount": "30", "type": "expense", "category": "Pets", "date": "2024-01-15",
	}), http.StatusCreated)

	catPath := "/api/categories/" + strconv.FormatInt(cat.ID, 10)
	expectStatus(t, admin.json(http.MethodDelete, catPath, nil), http.StatusConflict)
	expectStatus(t, admin.json(http.MethodDelete, "/api/categories/99999", nil), http.StatusNotFound)

	expectStatus(t, user.json(http.MethodPost, "/api/notes", map[string]string{"content": "no title"}), http.StatusBadRequest)
	expectStatus(t, user.json(http.MethodPost, "/api/notes", map[string]string{"title": "Groceries", "content": "milk"}), http.StatusCreated)
	expectStatus(t, user.json(http.MethodPost, "/api/reminders", map[string]any{
		"title": "Pay rent", "due_date": "2024-01-31T09:00:00Z",
	}), http.StatusCreated)
	resp = user.json(http.MethodPost, "/api/calendar/events", map[string]any{
		"title": "Dentist", "start_time": "2024-01-20T10:00:00Z", "end_time": "2024-01-20T11:00:00Z",
	})
	expectStatus(t, resp, http.StatusCreated)
	var ev struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &ev)

	evPath := "/api/calendar/events/" + strconv.FormatInt(ev.ID, 10)
	expectStatus(t, admin.json(http.MethodPut, evPath, map[string]string{"title": "Hijack"}), http.StatusNotFound)
	expectStatus(t, user.json(http.MethodPut, evPath, map[string]string{"color": "#000000"}), http.StatusOK)

	resp = user.json(http.MethodGet, "/api/calendar/events?start=2024-01-01&end=2024-01-31", nil)
	expectStatus(t, resp, http.StatusOK)
	var feed []struct {
		Type  string `json:"type"`
		Title string `json:"title"`
	}
	decodeBody(t, resp, &feed)
	kinds := map[string]bool{}
	for _, e := range feed {
		kinds[e.Type] = true
	}
	if !kinds["event"] || !kinds["reminder"] {
		t.Errorf("calendar feed = %+v, want an event and a reminder", feed)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp := c.json(http.MethodGet, "/healthz", nil)
	expectStatus(t, resp, http.StatusOK)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	expectStatus(t, c.json(http.MethodGet, "/readyz", nil), http.StatusOK)
	expectStatus(t, c.json(http.MethodGet, "/nowhere", nil), http.StatusNotFound)
	resp = c.json(http.MethodPatch, "/login", nil)
	expectStatus(t, resp, http.StatusMethodNotAllowed)
	if got := resp.Header.Get("Allow"); got != "POST" {
		t.Errorf("Allow = %q, want POST", got)
	}
	resp = c.json(http.MethodPatch, "/logout", nil)
	expectStatus(t, resp, http.StatusMethodNotAllowed)
	if got := resp.Header.Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q, want GET, POST", got)
	}

	resp = c.json(http.MethodGet, "/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"http_requests_total", "rate_limit_hits_total", "suspicious_requests_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTransactionCreateIsLoggedOnce(t *testing.T) {
	logs := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	env := newTestEnvWithLog(t, logs)
	c := env.client(t)
	c.register("root", "admin-key")

	expectStatus(t, c.json(http.MethodPost, "/api/transactions", map[string]any{
		"amount": 12, "type": "expense", "category": "Transport", "date": "2024-05-01",
	}), http.StatusCreated)

	if n := strings.Count(logs.String(), `"msg":"Transaction created"`); n != 1 {
		t.Errorf("Transaction created logged %d times, want 1", n)
	}
}
