package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wopanel/audit"
	"wopanel/config"
	"wopanel/jobs"
	"wopanel/models"
	"wopanel/services"
	"wopanel/store"
)

// stubRunner answers every command with empty output. An optional gate
// holds commands until released, which keeps a queued job in flight
// while the test inspects the registry.
type stubRunner struct {
	mu    sync.Mutex
	calls []string
	gate  chan struct{}
}

func (r *stubRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	r.mu.Unlock()
	return "", nil
}

func (r *stubRunner) ran(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range r.calls {
		if strings.HasPrefix(cmd, prefix) {
			return true
		}
	}
	return false
}

// stubFS is a map-backed filesystem for handler tests.
type stubFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newStubFS() *stubFS {
	return &stubFS{files: map[string][]byte{}}
}

func (s *stubFS) ReadFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (s *stubFS) WriteFile(path string, data []byte, _ os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), data...)
	return nil
}

func (s *stubFS) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return os.ErrNotExist
	}
	delete(s.files, path)
	return nil
}

func (s *stubFS) Exists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok, nil
}

func (s *stubFS) MkdirAll(string, os.FileMode) error { return nil }

// newOpsTestAPI wires an API with real orchestrators over stubbed
// host access, plus the routes the lifecycle tests exercise.
func newOpsTestAPI(t *testing.T, runner services.Runner) (*API, *gin.Engine, *stubFS) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatal(err)
	}
	trail, err := audit.New("")
	if err != nil {
		t.Fatal(err)
	}
	log := zap.NewNop().Sugar()
	fs := newStubFS()
	tool := &services.SiteTool{Bin: "wo", Runner: runner}
	prov := &services.Provisioner{
		Runner: runner, FS: fs, Tool: tool, Audit: trail, Log: log,
		WebRoot: "/var/www", PHPBaseDir: "/etc/php",
		NginxSitesDir: "/etc/nginx/sites-available",
	}
	api := &API{
		Cfg: &config.Config{
			SecretKey:     "test-secret",
			BillingAPIKey: "test-billing-key",
			DefaultPHP:    "8.1",
		},
		Store: db,
		Audit: trail,
		Jobs:  &jobs.Manager{Store: db, Log: log},
		Tool:  tool,
		Prov:  prov,
		Teardown: &services.Teardown{
			Runner: runner, FS: fs, Tool: tool, Audit: trail, Log: log,
			PHPBaseDir: "/etc/php", PHPVersions: []string{"8.1"},
			Provisioner: prov,
		},
		Nginx: &services.NginxEditor{
			Runner: runner, FS: fs, Log: log,
			SitesDir:   "/etc/nginx/sites-available",
			EnabledDir: "/etc/nginx/sites-enabled",
		},
		Log: log,
	}

	router := gin.New()
	router.POST("/api/login", api.Login)
	auth := router.Group("/api/v1")
	auth.Use(api.AuthMiddleware())
	admin := auth.Group("")
	admin.Use(api.AdminRequired())
	admin.DELETE("/tenants/:id", api.DeleteTenant)
	billing := router.Group("/api/v1/billing")
	billing.Use(api.BillingAuth())
	billing.POST("/suspend", api.BillingSuspend)
	billing.POST("/terminate", api.BillingTerminate)
	return api, router, fs
}

func billingHeaders() map[string]string {
	return map[string]string{"X-Billing-Key": "test-billing-key"}
}

func TestDeleteTenantClearsRegistryBeforeCleanup(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	api, router, _ := newOpsTestAPI(t, runner)
	seedUser(t, api, "admin", "s3cret", models.RoleAdministrator)
	token := login(t, router, "admin", "s3cret")

	tenant, err := api.Store.EnsureTenant("u_shop", "owner@shop.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := api.Store.CreateSite("shop.com", &tenant.ID, "8.1"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/tenants/%d", tenant.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	// The cleanup job is still gated; the registry must already be clean.
	if _, err := api.Store.GetTenant(tenant.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("tenant still listed while teardown runs: %v", err)
	}
	if _, err := api.Store.GetSiteByDomain("shop.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("site still listed while teardown runs: %v", err)
	}

	close(runner.gate)
	api.Jobs.Wait()
	if !runner.ran("wo site delete shop.com") {
		t.Errorf("teardown never deleted the site: %v", runner.calls)
	}
	if !runner.ran("userdel -r u_shop") {
		t.Errorf("teardown never removed the identity: %v", runner.calls)
	}
}

func TestBillingTerminateIsDomainScoped(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	api, router, _ := newOpsTestAPI(t, runner)

	tenant, err := api.Store.EnsureTenant("u_shop", "owner@shop.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := api.Store.CreateSite("shop.com", &tenant.ID, "8.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := api.Store.CreateSite("blog.shop.com", &tenant.ID, "8.1"); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(router, "/api/v1/billing/terminate", gin.H{"domain": "shop.com"}, billingHeaders())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	// Only the named site's row goes, and it goes before the job finishes.
	if _, err := api.Store.GetSiteByDomain("shop.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("terminated site still listed: %v", err)
	}
	if _, err := api.Store.GetSiteByDomain("blog.shop.com"); err != nil {
		t.Errorf("sibling site lost: %v", err)
	}
	if _, err := api.Store.GetTenant(tenant.ID); err != nil {
		t.Errorf("tenant lost: %v", err)
	}

	close(runner.gate)
	api.Jobs.Wait()
	if !runner.ran("wo site delete shop.com") {
		t.Errorf("teardown never deleted the site: %v", runner.calls)
	}
}

func TestBillingTerminateUnknownDomain(t *testing.T) {
	_, router, _ := newOpsTestAPI(t, &stubRunner{})

	rec := postJSON(router, "/api/v1/billing/terminate", gin.H{"domain": "ghost.com"}, billingHeaders())
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestBillingSuspendUnlinksSingleSite(t *testing.T) {
	runner := &stubRunner{}
	api, router, fs := newOpsTestAPI(t, runner)

	tenant, err := api.Store.EnsureTenant("u_shop", "owner@shop.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := api.Store.CreateSite("shop.com", &tenant.ID, "8.1"); err != nil {
		t.Fatal(err)
	}
	link := "/etc/nginx/sites-enabled/shop.com"
	if err := fs.WriteFile(link, []byte("vhost"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(router, "/api/v1/billing/suspend", gin.H{"domain": "shop.com"}, billingHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if exists, _ := fs.Exists(link); exists {
		t.Error("enabled link still present after suspend")
	}
	if !runner.ran("systemctl reload nginx") {
		t.Errorf("proxy never reloaded: %v", runner.calls)
	}
	// Suspension keeps the data: registry row and tenant survive.
	if _, err := api.Store.GetSiteByDomain("shop.com"); err != nil {
		t.Errorf("site row lost on suspend: %v", err)
	}
}

func TestBillingSuspendUnknownDomain(t *testing.T) {
	_, router, _ := newOpsTestAPI(t, &stubRunner{})

	rec := postJSON(router, "/api/v1/billing/suspend", gin.H{"domain": "ghost.com"}, billingHeaders())
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
