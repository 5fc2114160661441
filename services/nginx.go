package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrConfigNotFound indicates the domain has no vhost file.
var ErrConfigNotFound = errors.New("nginx config file not found")

// NginxEditor is the direct config-edit path. Unlike the provisioner's
// vhost patch, this path guarantees revert-on-failure: the previous
// content is restored before any error is reported, whether validation
// or reload failed.
type NginxEditor struct {
	Runner Runner
	FS     FS
	Log    *zap.SugaredLogger

	SitesDir   string // /etc/nginx/sites-available
	EnabledDir string // /etc/nginx/sites-enabled
}

// ConfigPath returns the vhost file location for a domain.
func (e *NginxEditor) ConfigPath(domain string) string {
	return filepath.Join(e.SitesDir, domain)
}

// GetConfig reads the current vhost content.
func (e *NginxEditor) GetConfig(domain string) (string, error) {
	path := e.ConfigPath(domain)
	exists, err := e.FS.Exists(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrConfigNotFound
	}
	content, err := e.FS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// SaveConfig writes new vhost content with the safe-write sequence:
// backup in memory, write, validate, reload. Validation failure or reload
// failure both synchronously restore the backup before the error is
// returned; the error carries the validator's stderr.
func (e *NginxEditor) SaveConfig(ctx context.Context, domain, content string) error {
	path := e.ConfigPath(domain)
	exists, err := e.FS.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return ErrConfigNotFound
	}

	backup, err := e.FS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read current config: %w", err)
	}
	revert := func() {
		if rerr := e.FS.WriteFile(path, backup, 0o644); rerr != nil {
			e.Log.Errorw("config revert failed", "domain", domain, "error", rerr)
		}
	}

	if err := e.FS.WriteFile(path, []byte(content), 0o644); err != nil {
		revert()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if _, err := e.Runner.Run(ctx, "nginx", "-t"); err != nil {
		revert()
		return fmt.Errorf("nginx config validation failed: %w", err)
	}
	if _, err := e.Runner.Run(ctx, "systemctl", "reload", "nginx"); err != nil {
		revert()
		return fmt.Errorf("failed to reload nginx: %w", err)
	}
	return nil
}

// DisableSite unlinks the domain from sites-enabled and reloads the
// proxy. Used by the billing suspend hook.
func (e *NginxEditor) DisableSite(ctx context.Context, domain string) error {
	link := filepath.Join(e.EnabledDir, domain)
	exists, err := e.FS.Exists(link)
	if err != nil || !exists {
		return err
	}
	if err := e.FS.Remove(link); err != nil {
		return fmt.Errorf("remove enabled link: %w", err)
	}
	if _, err := e.Runner.Run(ctx, "systemctl", "reload", "nginx"); err != nil {
		return fmt.Errorf("reload nginx: %w", err)
	}
	return nil
}
