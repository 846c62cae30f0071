package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/auth"
	"github.com/EmaRG1/user-manager/internal/config"
	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/model"
	"github.com/EmaRG1/user-manager/internal/service"
)

func newTestApp(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	seed, err := mockdb.DefaultSeed()
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}
	if cfg.LoginRatePerMinute == 0 {
		cfg.LoginRatePerMinute = 600
		cfg.LoginRateBurst = 20
	}
	if cfg.CORSAllowedOrigins == nil {
		cfg.CORSAllowedOrigins = []string{"http://localhost:5173"}
	}
	codec := auth.NewCodec("test-secret", zerolog.Nop())
	services := service.New(service.Deps{
		Store:    mockdb.New(seed),
		Codec:    codec,
		TokenTTL: "1h",
		Log:      zerolog.Nop(),
	})
	app := httptest.NewServer(NewServer(cfg, services, codec, zerolog.Nop()).Router())
	t.Cleanup(app.Close)
	return app
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		resp.Body.Close()
		t.Fatalf("expected %d, got %d", status, resp.StatusCode)
	}
	var body map[string]string
	readBody(t, resp, &body)
	if body["error"] != code {
		t.Fatalf("expected error %s, got %q", code, body["error"])
	}
}

func login(t *testing.T, app *httptest.Server, email, password string) string {
	t.Helper()
	resp := doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
	var res service.LoginResult
	readBody(t, resp, &res)
	if res.Token == "" {
		t.Fatalf("expected token for %s", email)
	}
	return res.Token
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, config.Config{})

	resp := doReq(t, http.MethodGet, app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	login(t, app, "admin@admin.com", "admin123")

	resp = doReq(t, http.MethodGet, app.URL+"/metrics", "", nil)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `user_manager_logins_total{result="success"} 1`) {
		t.Fatalf("expected login counter in metrics:\n%s", raw)
	}
	if !strings.Contains(string(raw), `route="/health"`) {
		t.Fatalf("expected request counter by route in metrics")
	}
}

func TestLogin(t *testing.T) {
	app := newTestApp(t, config.Config{})

	resp := doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": "admin@admin.com", "password": "admin123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var raw map[string]json.RawMessage
	readBody(t, resp, &raw)
	if bytes.Contains(raw["user"], []byte("password")) {
		t.Fatalf("expected no password in login response: %s", raw["user"])
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": "admin@admin.com", "password": "wrong"})
	expectError(t, resp, http.StatusUnauthorized, "invalid_credentials")

	resp = doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": "ADMIN@admin.com", "password": "admin123"})
	expectError(t, resp, http.StatusUnauthorized, "invalid_credentials")

	resp = doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": ""})
	expectError(t, resp, http.StatusBadRequest, "invalid_request")
}

func TestLoginRateLimit(t *testing.T) {
	app := newTestApp(t, config.Config{LoginRatePerMinute: 1, LoginRateBurst: 2})

	creds := map[string]string{"email": "admin@admin.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		resp := doReq(t, http.MethodPost, app.URL+"/auth/login", "", creds)
		expectError(t, resp, http.StatusUnauthorized, "invalid_credentials")
	}
	resp := doReq(t, http.MethodPost, app.URL+"/auth/login", "", creds)
	expectError(t, resp, http.StatusTooManyRequests, "rate_limited")
}

func loginFrom(t *testing.T, app *httptest.Server, forwardedFor string) int {
	t.Helper()
	body := strings.NewReader(`{"email":"admin@admin.com","password":"wrong"}`)
	req, err := http.NewRequest(http.MethodPost, app.URL+"/auth/login", body)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginRateLimitIgnoresForwardedHeaders(t *testing.T) {
	app := newTestApp(t, config.Config{LoginRatePerMinute: 1, LoginRateBurst: 2})

	limited := 0
	for i := 0; i < 20; i++ {
		if loginFrom(t, app, "10.0.0."+strconv.Itoa(i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 18 {
		t.Fatalf("expected 18 of 20 attempts rate limited, got %d", limited)
	}
}

func TestLoginRateLimitTrustedProxy(t *testing.T) {
	app := newTestApp(t, config.Config{LoginRatePerMinute: 1, LoginRateBurst: 1, TrustProxyHeaders: true})

	if status := loginFrom(t, app, "10.0.0.1"); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for first attempt, got %d", status)
	}
	if status := loginFrom(t, app, "10.0.0.1"); status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeated client, got %d", status)
	}
	if status := loginFrom(t, app, "10.0.0.2"); status != http.StatusUnauthorized {
		t.Fatalf("expected separate bucket for another client, got %d", status)
	}
}

func TestIPLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)
	limiter := newIPLimiter(60, 2)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		limiter.allow("10.0.0." + strconv.Itoa(i))
	}
	if len(limiter.limiters) != 100 {
		t.Fatalf("expected 100 buckets, got %d", len(limiter.limiters))
	}

	now = now.Add(2 * time.Minute)
	if !limiter.allow("192.168.1.1") {
		t.Fatalf("expected fresh client to be allowed")
	}
	if len(limiter.limiters) != 1 {
		t.Fatalf("expected idle buckets evicted, got %d", len(limiter.limiters))
	}

	limiter.allow("192.168.1.1")
	if limiter.allow("192.168.1.1") {
		t.Fatalf("expected burst exhausted for active client")
	}
}

func TestAuthMiddleware(t *testing.T) {
	app := newTestApp(t, config.Config{})

	resp := doReq(t, http.MethodGet, app.URL+"/auth/me", "", nil)
	expectError(t, resp, http.StatusUnauthorized, "missing_token")

	resp = doReq(t, http.MethodGet, app.URL+"/auth/me", "not-a-token", nil)
	expectError(t, resp, http.StatusUnauthorized, "invalid_token")

	other := auth.NewCodec("other-secret", zerolog.Nop())
	forged, err := other.Issue(auth.Payload{UserID: 1, Email: "admin@admin.com", Role: model.RoleAdmin}, "1h")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/users", forged, nil)
	expectError(t, resp, http.StatusUnauthorized, "invalid_token")

	token := login(t, app, "juan@example.com", "user123")
	resp = doReq(t, http.MethodGet, app.URL+"/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var me model.Profile
	readBody(t, resp, &me)
	if me.Email != "juan@example.com" || len(me.Addresses) != 2 {
		t.Fatalf("unexpected profile: %+v", me)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUserAccessRules(t *testing.T) {
	app := newTestApp(t, config.Config{})
	admin := login(t, app, "admin@admin.com", "admin123")
	user := login(t, app, "juan@example.com", "user123")

	// Admin lists users without passwords.
	resp := doReq(t, http.MethodGet, app.URL+"/users", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var users []map[string]interface{}
	readBody(t, resp, &users)
	if len(users) == 0 {
		t.Fatalf("expected users")
	}
	for _, u := range users {
		if _, ok := u["password"]; ok {
			t.Fatalf("expected password stripped: %+v", u)
		}
	}

	// Users cannot list everyone or read someone else.
	resp = doReq(t, http.MethodGet, app.URL+"/users", user, nil)
	expectError(t, resp, http.StatusForbidden, "forbidden")
	resp = doReq(t, http.MethodGet, app.URL+"/users/1", user, nil)
	expectError(t, resp, http.StatusForbidden, "forbidden")
	resp = doReq(t, http.MethodGet, app.URL+"/stats", user, nil)
	expectError(t, resp, http.StatusForbidden, "forbidden")

	// Users can read and edit themselves but not promote themselves.
	resp = doReq(t, http.MethodGet, app.URL+"/users/2", user, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doReq(t, http.MethodPatch, app.URL+"/users/2", user, map[string]string{"name": "Juan P."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var updated model.Profile
	readBody(t, resp, &updated)
	if updated.Name != "Juan P." || updated.Email != "juan@example.com" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	resp = doReq(t, http.MethodPatch, app.URL+"/users/2", user, map[string]string{"role": "admin"})
	expectError(t, resp, http.StatusForbidden, "forbidden")

	resp = doReq(t, http.MethodGet, app.URL+"/users/99", admin, nil)
	expectError(t, resp, http.StatusNotFound, "not_found")
	resp = doReq(t, http.MethodGet, app.URL+"/users/abc", admin, nil)
	expectError(t, resp, http.StatusBadRequest, "invalid_user_id")
}

func TestCreateUserAndDuplicateEmail(t *testing.T) {
	app := newTestApp(t, config.Config{})
	admin := login(t, app, "admin@admin.com", "admin123")

	body := map[string]string{"name": "Ana", "email": "ana@example.com", "password": "secret1", "role": "user"}
	resp := doReq(t, http.MethodPost, app.URL+"/users", admin, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created model.Profile
	readBody(t, resp, &created)
	if created.ID <= 3 || created.Role != model.RoleUser {
		t.Fatalf("unexpected created user: %+v", created)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/users", admin, body)
	expectError(t, resp, http.StatusConflict, "duplicate_email")

	resp = doReq(t, http.MethodPatch, app.URL+"/users/2", admin, map[string]string{"email": "ana@example.com"})
	expectError(t, resp, http.StatusConflict, "duplicate_email")

	resp = doReq(t, http.MethodPost, app.URL+"/users", admin, map[string]string{"name": "X", "email": "x@example.com", "password": "p", "role": "root"})
	expectError(t, resp, http.StatusBadRequest, "invalid_request")

	ana := login(t, app, "ana@example.com", "secret1")
	for _, path := range []string{"/users/" + strconv.Itoa(created.ID), "/auth/me"} {
		resp = doReq(t, http.MethodGet, app.URL+path, ana, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: read error: %v", path, err)
		}
		if !strings.Contains(string(raw), `"studies":[]`) || !strings.Contains(string(raw), `"addresses":[]`) {
			t.Fatalf("%s: expected empty record arrays, got %s", path, raw)
		}
	}
}

func TestDeleteUserCascades(t *testing.T) {
	app := newTestApp(t, config.Config{})
	admin := login(t, app, "admin@admin.com", "admin123")

	resp := doReq(t, http.MethodDelete, app.URL+"/users/2", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	for _, path := range []string{"/users/2/studies", "/users/2/addresses"} {
		resp = doReq(t, http.MethodGet, app.URL+path, admin, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		var items []json.RawMessage
		readBody(t, resp, &items)
		if len(items) != 0 {
			t.Fatalf("%s: expected no records after cascade, got %d", path, len(items))
		}
	}

	resp = doReq(t, http.MethodGet, app.URL+"/stats", admin, nil)
	var counts mockdb.Counts
	readBody(t, resp, &counts)
	if counts.Users != 2 || counts.Studies != 2 || counts.Addresses != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestStudyOwnership(t *testing.T) {
	app := newTestApp(t, config.Config{})
	user := login(t, app, "juan@example.com", "user123")

	resp := doReq(t, http.MethodPost, app.URL+"/studies", user, map[string]interface{}{
		"userId": 1, "institution": "UBA", "title": "MSc",
	})
	expectError(t, resp, http.StatusForbidden, "forbidden")

	resp = doReq(t, http.MethodPost, app.URL+"/studies", user, map[string]interface{}{
		"institution": "UBA", "title": "MSc", "startYear": "2025", "currentlyStudying": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var study model.Study
	readBody(t, resp, &study)
	if study.UserID != 2 || study.EndYear != "" || !study.CurrentlyStudying {
		t.Fatalf("unexpected study: %+v", study)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/studies/1", user, nil)
	expectError(t, resp, http.StatusForbidden, "forbidden")

	resp = doReq(t, http.MethodPatch, app.URL+"/studies/"+strconv.Itoa(study.ID), user, map[string]interface{}{
		"institution": "UBA", "title": "PhD", "startYear": "2025", "endYear": "2029",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var updated model.Study
	readBody(t, resp, &updated)
	if updated.Title != "PhD" || updated.UserID != 2 || updated.CurrentlyStudying {
		t.Fatalf("unexpected update: %+v", updated)
	}

	resp = doReq(t, http.MethodDelete, app.URL+"/studies/"+strconv.Itoa(study.ID), user, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doReq(t, http.MethodGet, app.URL+"/studies/"+strconv.Itoa(study.ID), user, nil)
	expectError(t, resp, http.StatusNotFound, "not_found")
}

func TestAddressEndpoints(t *testing.T) {
	app := newTestApp(t, config.Config{})
	admin := login(t, app, "admin@admin.com", "admin123")
	user := login(t, app, "maria@example.com", "user123")

	resp := doReq(t, http.MethodPost, app.URL+"/addresses", admin, map[string]interface{}{
		"userId": 3, "street": "Calle 1", "city": "Rosario", "country": "AR",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var address model.Address
	readBody(t, resp, &address)
	if address.UserID != 3 {
		t.Fatalf("expected admin to create for user 3, got %+v", address)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/addresses/"+strconv.Itoa(address.ID), user, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected owner to read address, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, app.URL+"/addresses/2", user, nil)
	expectError(t, resp, http.StatusForbidden, "forbidden")

	resp = doReq(t, http.MethodDelete, app.URL+"/addresses/"+strconv.Itoa(address.ID), user, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProfileTabs(t *testing.T) {
	app := newTestApp(t, config.Config{})
	user := login(t, app, "juan@example.com", "user123")

	resp := doReq(t, http.MethodGet, app.URL+"/users/2/tabs/profile", user, nil)
	var profile model.Profile
	readBody(t, resp, &profile)
	if profile.ID != 2 {
		t.Fatalf("unexpected profile tab: %+v", profile)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/users/2/tabs/addresses", user, nil)
	var addresses []model.Address
	readBody(t, resp, &addresses)
	if len(addresses) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addresses))
	}

	resp = doReq(t, http.MethodGet, app.URL+"/users/2/tabs/studies", user, nil)
	var studies []model.Study
	readBody(t, resp, &studies)
	if len(studies) != 1 {
		t.Fatalf("expected 1 study, got %d", len(studies))
	}

	resp = doReq(t, http.MethodGet, app.URL+"/users/2/tabs/settings", user, nil)
	expectError(t, resp, http.StatusNotFound, "unknown_tab")

	resp = doReq(t, http.MethodGet, app.URL+"/users/1/tabs/profile", user, nil)
	expectError(t, resp, http.StatusForbidden, "forbidden")
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, config.Config{})

	req, err := http.NewRequest(http.MethodOptions, app.URL+"/auth/login", nil)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
