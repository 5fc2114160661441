package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManageServiceAlias(t *testing.T) {
	runner := &fakeRunner{}
	s := &SystemService{Runner: runner}
	if err := s.ManageService(context.Background(), "redis", "restart"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.indexOf("systemctl restart redis-server") < 0 {
		t.Errorf("alias not applied: %v", runner.commands())
	}
}

func TestListServicesFiltersUnknownUnits(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"sh -c systemctl is-active nginx":        "active",
		"sh -c systemctl is-active mariadb":      "inactive",
		"sh -c systemctl is-active redis-server": "unknown",
		"sh -c systemctl is-active php8.0-fpm":   "unknown",
		"sh -c systemctl is-active php8.1-fpm":   "active",
		"sh -c systemctl is-active php8.2-fpm":   "unknown",
		"sh -c systemctl is-active php8.3-fpm":   "unknown",
		"sh -c systemctl is-active ufw":          "unknown",
		"sh -c nginx -v 2>&1":                    "nginx version: nginx/1.24.0",
		"php8.1 -v":                              "PHP 8.1.27 (fpm-fcgi)",
		"mariadb --version":                      "mariadb  Ver 15.1 Distrib 10.11.6-MariaDB",
	}}
	s := &SystemService{Runner: runner}

	services := s.ListServices(context.Background())
	if len(services) != 3 {
		t.Fatalf("got %d services, want 3: %+v", len(services), services)
	}
	byName := map[string]ServiceStatus{}
	for _, svc := range services {
		byName[svc.Name] = svc
	}
	if byName["NGINX"].Status != "running" || byName["NGINX"].Version != "1.24.0" {
		t.Errorf("nginx = %+v", byName["NGINX"])
	}
	if byName["MariaDB"].Status != "stopped" {
		t.Errorf("mariadb = %+v", byName["MariaDB"])
	}
	if byName["PHP 8.1-FPM"].Version != "8.1.27" {
		t.Errorf("php = %+v", byName["PHP 8.1-FPM"])
	}
}

// systemctl is-active prints "unknown" and exits non-zero for units the
// host has never installed; the answer must survive the exit status or
// every absent service would show up as stopped.
func TestListServicesRealExitStatus(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\necho unknown\nexit 3\n"
	if err := os.WriteFile(filepath.Join(dir, "systemctl"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	s := &SystemService{Runner: ExecRunner{}}
	services := s.ListServices(context.Background())
	if len(services) != 0 {
		t.Errorf("got %d services, want 0: %+v", len(services), services)
	}
}

func TestPHPExtensions(t *testing.T) {
	base := t.TempDir()
	mods := filepath.Join(base, "8.1", "mods-available")
	confD := filepath.Join(base, "8.1", "fpm", "conf.d")
	for _, dir := range []string{mods, confD} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"redis.ini", "xdebug.ini", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(mods, name), []byte("extension=x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(confD, "20-redis.ini"), []byte("extension=redis"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := &SystemService{Runner: &fakeRunner{}, PHPBaseDir: base}
	extensions := s.PHPExtensions("8.1")
	if len(extensions) != 2 {
		t.Fatalf("got %d extensions, want 2: %+v", len(extensions), extensions)
	}
	// Sorted by name: redis then xdebug.
	if extensions[0].Name != "redis" || !extensions[0].Enabled {
		t.Errorf("redis = %+v", extensions[0])
	}
	if extensions[1].Name != "xdebug" || extensions[1].Enabled {
		t.Errorf("xdebug = %+v", extensions[1])
	}
}

func TestManagePHPExtensionRestartsFPM(t *testing.T) {
	runner := &fakeRunner{}
	s := &SystemService{Runner: runner}
	if err := s.ManagePHPExtension(context.Background(), "8.1", "xdebug", "disable"); err != nil {
		t.Fatal(err)
	}
	dismod := runner.indexOf("phpdismod -v 8.1 xdebug")
	restart := runner.indexOf("systemctl restart php8.1-fpm")
	if dismod < 0 || restart < 0 || restart < dismod {
		t.Errorf("command sequence wrong: %v", runner.commands())
	}
}

func TestFollowLogStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte("first line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SystemService{Runner: ExecRunner{}}
	lines, err := s.FollowLog(ctx, path)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case line := <-lines:
		if line != "first line" {
			t.Errorf("line = %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no line received")
	}

	cancel()
	select {
	case _, open := <-lines:
		for open {
			_, open = <-lines
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestFollowLogMissingFile(t *testing.T) {
	s := &SystemService{Runner: ExecRunner{}}
	if _, err := s.FollowLog(context.Background(), "/nonexistent/file.log"); err == nil {
		t.Error("expected error for missing file")
	}
}
