package services

import (
	"context"
	"fmt"
	"strings"
)

// AdminCredentials seed the WordPress administrator when creating a site.
type AdminCredentials struct {
	User  string
	Email string
	Pass  string
}

// SiteTool wraps the site-management CLI. It only builds argv and hands
// off to the Runner; all output parsing lives in the resolver.
type SiteTool struct {
	Bin    string
	Runner Runner
}

// Create runs `<tool> site create`. Feature flags map to CLI switches:
// "ssl" enables Let's Encrypt, "cache" enables the Redis object cache.
func (t *SiteTool) Create(ctx context.Context, domain, phpVersion string, features []string, admin *AdminCredentials) error {
	args := []string{"site", "create", domain, fmt.Sprintf("--php=%s", phpVersion)}
	for _, f := range features {
		switch f {
		case "ssl":
			args = append(args, "-le")
		case "cache":
			args = append(args, "--wpredis")
		}
	}
	if admin != nil && admin.User != "" {
		args = append(args,
			fmt.Sprintf("--user=%s", admin.User),
			fmt.Sprintf("--email=%s", admin.Email),
			fmt.Sprintf("--pass=%s", admin.Pass),
		)
	}
	_, err := t.Runner.Run(ctx, t.Bin, args...)
	return err
}

// Delete runs `<tool> site delete --no-prompt`.
func (t *SiteTool) Delete(ctx context.Context, domain string) error {
	_, err := t.Runner.Run(ctx, t.Bin, "site", "delete", domain, "--no-prompt")
	return err
}

// UpdateSSL toggles Let's Encrypt for the domain.
func (t *SiteTool) UpdateSSL(ctx context.Context, domain string, enabled bool) error {
	flag := "--le"
	if !enabled {
		flag = "--le=off"
	}
	_, err := t.Runner.Run(ctx, t.Bin, "site", "update", domain, flag)
	return err
}

// UpdatePHP switches the site's runtime version.
func (t *SiteTool) UpdatePHP(ctx context.Context, domain, phpVersion string) error {
	_, err := t.Runner.Run(ctx, t.Bin, "site", "update", domain, fmt.Sprintf("--php=%s", phpVersion))
	return err
}

// CleanCache purges all caches for the domain.
func (t *SiteTool) CleanCache(ctx context.Context, domain string) error {
	_, err := t.Runner.Run(ctx, t.Bin, "site", "clean", domain, "--all")
	return err
}

// List returns the hosted domains, one per output line.
func (t *SiteTool) List(ctx context.Context) ([]string, error) {
	out, err := t.Runner.Run(ctx, t.Bin, "site", "list")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var domains []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			domains = append(domains, line)
		}
	}
	return domains, nil
}

// InfoRaw returns the free-text `site info` output for the resolver.
func (t *SiteTool) InfoRaw(ctx context.Context, domain string) (string, error) {
	return t.Runner.Run(ctx, t.Bin, "site", "info", domain)
}
