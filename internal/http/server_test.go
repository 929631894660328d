package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"susu/internal/auth"
	"susu/internal/cache"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/metrics"
	"susu/internal/services"
	"susu/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv    *Server
	admin  string
	viewer string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, nil)
}

func newTestEnvWithLogger(t *testing.T, logger *log.Logger) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	c := cache.NewReadThrough(256, time.Minute)
	jwt := auth.NewJWTManager(testSecret, time.Hour)
	users := services.NewUserService(st, jwt)
	notifier := services.NewNotifier(nil)

	svc := Services{
		Slots:     services.NewSlotService(st, c, notifier),
		Groups:    services.NewGroupService(st, c),
		Members:   services.NewMemberService(st, c),
		Payments:  services.NewPaymentService(st, c, notifier),
		Analytics: services.NewAnalyticsService(st, c),
		Users:     users,
	}
	srv := NewServer(Options{
		Addr:         ":0",
		RateLimitRPM: 10000,
		JWT:          jwt,
		Store:        st,
		Metrics:      metrics.New(),
		Logger:       logger,
	}, svc)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	token := func(email string, role core.Role) string {
		if _, err := users.Register(ctx, email, "", "correct horse", role); err != nil {
			t.Fatalf("Register(%s): %v", email, err)
		}
		s, err := users.Login(ctx, email, "correct horse")
		if err != nil {
			t.Fatalf("Login(%s): %v", email, err)
		}
		return s.Token
	}
	return &testEnv{
		srv:    srv,
		admin:  token("admin@example.com", core.RoleAdmin),
		viewer: token("viewer@example.com", core.RoleViewer),
	}
}

func (e *testEnv) do(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:4000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type list[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func (e *testEnv) createGroup(t *testing.T) core.Group {
	t.Helper()
	rr := e.do(t, e.admin, http.MethodPost, "/groups", map[string]interface{}{
		"name":         "Circle",
		"contribution": "250.00",
		"maxMembers":   3,
		"startMonth":   "2024-01",
		"endMonth":     "2024-04",
		"deadlineDay":  5,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create group status=%d body=%s", rr.Code, rr.Body)
	}
	return decode[core.Group](t, rr)
}

func (e *testEnv) createMember(t *testing.T, name string) core.Member {
	t.Helper()
	rr := e.do(t, e.admin, http.MethodPost, "/members", map[string]string{"name": name})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create member status=%d body=%s", rr.Code, rr.Body)
	}
	return decode[core.Member](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := e.do(t, "", http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id", path)
		}
	}
}

func TestAuthorization(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name   string
		token  string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"no token", "", http.MethodGet, "/groups", nil, http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.MethodGet, "/groups", nil, http.StatusUnauthorized},
		{"viewer reads", e.viewer, http.MethodGet, "/groups", nil, http.StatusOK},
		{"viewer cannot mutate", e.viewer, http.MethodPost, "/members", map[string]string{"name": "x"}, http.StatusForbidden},
		{"viewer cannot list users", e.viewer, http.MethodGet, "/users", nil, http.StatusForbidden},
		{"admin lists users", e.admin, http.MethodGet, "/users", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, tt.token, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, "", http.MethodPost, "/auth/login", map[string]string{
		"email": "admin@example.com", "password": "wrong password",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status=%d", rr.Code)
	}
	rr = e.do(t, "", http.MethodPost, "/auth/login", map[string]string{
		"email": "admin@example.com", "password": "correct horse",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body)
	}
	if s := decode[services.Session](t, rr); s.Token == "" {
		t.Fatal("empty token")
	}
}

func TestExpandMonths(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, e.viewer, http.MethodGet, "/months?start=2023-11&end=2024-02", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	got := decode[map[string][]string](t, rr)["months"]
	want := []string{"2023-11", "2023-12", "2024-01", "2024-02"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("months=%v want %v", got, want)
	}

	rr = e.do(t, e.viewer, http.MethodGet, "/months?start=2024-05&end=2024-01", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reversed range status=%d", rr.Code)
	}
}

func TestSlotLifecycle(t *testing.T) {
	e := newTestEnv(t)
	g := e.createGroup(t)
	abena := e.createMember(t, "Abena")
	kofi := e.createMember(t, "Kofi")
	assignPath := "/groups/" + g.ID + "/assignments"

	rr := e.do(t, e.admin, http.MethodPost, assignPath, map[string]string{"memberId": abena.ID, "month": "2024-02"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("assign status=%d body=%s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), TriggerSlotAssigned) {
		t.Errorf("missing slot trigger: %q", rr.Header().Get("HX-Trigger"))
	}

	conflicts := []struct {
		name   string
		member string
		month  string
		want   int
	}{
		{"same triple again", abena.ID, "2024-02", http.StatusConflict},
		{"other member same month", kofi.ID, "2024-02", http.StatusConflict},
		{"outside range", kofi.ID, "2024-09", http.StatusUnprocessableEntity},
		{"malformed month", kofi.ID, "2024-13", http.StatusUnprocessableEntity},
		{"unknown member", "nobody", "2024-03", http.StatusNotFound},
	}
	for _, tt := range conflicts {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, e.admin, http.MethodPost, assignPath, map[string]string{"memberId": tt.member, "month": tt.month})
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}

	rr = e.do(t, e.admin, http.MethodPost, assignPath, map[string]string{"memberId": kofi.ID, "month": "2024-02"})
	if body := decode[errorBody](t, rr); body.Code != "duplicate_month_claim" || body.HeldBy != "Abena" {
		t.Fatalf("conflict body=%+v", body)
	}

	rr = e.do(t, e.viewer, http.MethodGet, "/groups/"+g.ID+"/months", nil)
	slots := decode[list[core.Slot]](t, rr)
	if slots.Count != 4 {
		t.Fatalf("slots=%d want 4", slots.Count)
	}
	if s := slots.Items[1]; !s.Reserved || s.ReservedBy != "Abena" || s.Month != "2024-02" {
		t.Fatalf("slot[1]=%+v", s)
	}
	if slots.Items[0].Reserved {
		t.Fatalf("slot[0] should be free: %+v", slots.Items[0])
	}

	unassignPath := "/groups/" + g.ID + "/members/" + abena.ID + "/assignments"
	rr = e.do(t, e.admin, http.MethodDelete, unassignPath+"?month=2024-03", nil)
	if n := decode[map[string]int](t, rr)["removed"]; n != 0 {
		t.Fatalf("unheld month removed=%d", n)
	}
	rr = e.do(t, e.admin, http.MethodDelete, unassignPath, nil)
	if n := decode[map[string]int](t, rr)["removed"]; n != 1 {
		t.Fatalf("removed=%d want 1", n)
	}

	rr = e.do(t, e.viewer, http.MethodGet, "/groups/"+g.ID+"/months", nil)
	for _, s := range decode[list[core.Slot]](t, rr).Items {
		if s.Reserved {
			t.Fatalf("slot %s still reserved after unassign", s.Month)
		}
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines(substr string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, line := range strings.Split(b.buf.String(), "\n") {
		if strings.Contains(line, substr) {
			out = append(out, line)
		}
	}
	return out
}

func TestSlotLogging(t *testing.T) {
	var out lockedBuffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &out, NoColor: true})
	prev := slog.Default()
	slog.SetDefault(logger.Logger)
	t.Cleanup(func() { slog.SetDefault(prev) })

	e := newTestEnvWithLogger(t, logger)
	g := e.createGroup(t)
	abena := e.createMember(t, "Abena")
	kofi := e.createMember(t, "Kofi")
	assignPath := "/groups/" + g.ID + "/assignments"

	if rr := e.do(t, e.admin, http.MethodPost, assignPath, map[string]string{"memberId": abena.ID, "month": "2024-02"}); rr.Code != http.StatusCreated {
		t.Fatalf("assign status=%d body=%s", rr.Code, rr.Body)
	}
	if got := out.lines("operation=assign"); len(got) != 1 {
		t.Fatalf("assign logged %d times: %q", len(got), got)
	}

	if rr := e.do(t, e.admin, http.MethodDelete, "/groups/"+g.ID+"/members/"+abena.ID+"/assignments", nil); rr.Code != http.StatusOK {
		t.Fatalf("unassign status=%d body=%s", rr.Code, rr.Body)
	}
	if got := out.lines("operation=unassign"); len(got) != 1 {
		t.Fatalf("unassign logged %d times: %q", len(got), got)
	}

	if rr := e.do(t, e.admin, http.MethodPost, assignPath, map[string]string{"memberId": kofi.ID, "month": "2024-13"}); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month status=%d", rr.Code)
	}
	rejected := out.lines("Request rejected")
	if len(rejected) != 1 || !strings.Contains(rejected[0], "component="+log.ComponentSlots) {
		t.Fatalf("rejection not logged under the slots component: %q", rejected)
	}
}

func TestGroupValidation(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name string
		body interface{}
	}{
		{"empty body", ""},
		{"malformed", "{"},
		{"unknown field", map[string]interface{}{"name": "x", "colour": "red"}},
		{"missing months", map[string]interface{}{"name": "x", "contribution": "10", "maxMembers": 2}},
		{"bad deadline", map[string]interface{}{
			"name": "x", "contribution": "10", "maxMembers": 2,
			"startMonth": "2024-01", "endMonth": "2024-02", "deadlineDay": 40,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, e.admin, http.MethodPost, "/groups", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
			}
			if body := decode[errorBody](t, rr); body.Code != "validation" || len(body.Fields) == 0 {
				t.Fatalf("body=%+v", body)
			}
		})
	}
}

func TestPaymentFlow(t *testing.T) {
	e := newTestEnv(t)
	g := e.createGroup(t)
	m := e.createMember(t, "Ama")
	e.do(t, e.admin, http.MethodPost, "/groups/"+g.ID+"/assignments", map[string]string{"memberId": m.ID, "month": "2024-01"})

	rr := e.do(t, e.admin, http.MethodPost, "/payments", map[string]interface{}{
		"groupId": g.ID, "memberId": m.ID, "month": "2024-01",
		"paidAt": "2024-01-03T10:00:00Z", "method": "cash",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("record status=%d body=%s", rr.Code, rr.Body)
	}
	p := decode[core.Payment](t, rr)
	if p.Status != core.StatusPending || !p.Amount.Equal(g.Contribution) {
		t.Fatalf("payment=%+v", p)
	}

	rr = e.do(t, e.admin, http.MethodPatch, "/payments/"+p.ID+"/status", map[string]string{"status": "received"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status update=%d body=%s", rr.Code, rr.Body)
	}

	rr = e.do(t, e.viewer, http.MethodGet, "/payments?groupId="+g.ID+"&status=received", nil)
	if got := decode[list[core.Payment]](t, rr); got.Count != 1 {
		t.Fatalf("filtered payments=%d", got.Count)
	}
	rr = e.do(t, e.viewer, http.MethodGet, "/payments?month=24-01", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month filter status=%d", rr.Code)
	}

	rr = e.do(t, e.admin, http.MethodPost, "/payments", map[string]interface{}{
		"groupId": g.ID, "memberId": m.ID, "month": "2024-02", "method": "cash",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("payment without assignment status=%d", rr.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, e.admin, http.MethodGet, "/users", nil)
	var adminID, viewerID string
	for _, u := range decode[list[core.User]](t, rr).Items {
		switch u.Role {
		case core.RoleAdmin:
			adminID = u.ID
		case core.RoleViewer:
			viewerID = u.ID
		}
	}
	if rr := e.do(t, e.admin, http.MethodDelete, "/users/"+adminID, nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("self delete status=%d", rr.Code)
	}
	if rr := e.do(t, e.admin, http.MethodDelete, "/users/"+viewerID, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete viewer status=%d", rr.Code)
	}
	if rr := e.do(t, e.admin, http.MethodDelete, "/users/"+viewerID, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, e.viewer, http.MethodGet, "/groups", nil)
	rr := e.do(t, "", http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `route="GET /groups"`) {
		t.Fatalf("route label missing from metrics output")
	}
}
