package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"wopanel/audit"
	"wopanel/vault"
)

// ProvisionRequest describes one site provisioning job.
type ProvisionRequest struct {
	Domain     string
	PHPVersion string
	Features   []string
	Plugins    []string
	SystemUser string
	Admin      *AdminCredentials
}

// Provisioner performs the ordered isolation sequence for one site:
// base site creation, system identity ensure, worker-pool generation,
// vhost patch, ownership fix, archive deployment.
//
// Failure semantics are deliberately best-effort: a failing step aborts
// the remaining steps but completed steps are never rolled back. The
// outcome lands in the job record and the audit trail; operators inspect
// and re-run. Do not "fix" this into a transactional model without a
// deliberate decision.
type Provisioner struct {
	Runner Runner
	FS     FS
	Tool   *SiteTool
	Vault  *vault.Store
	Audit  *audit.Trail
	Log    *zap.SugaredLogger

	WebRoot       string // /var/www
	PHPBaseDir    string // /etc/php
	NginxSitesDir string // /etc/nginx/sites-available

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var fastcgiPattern = regexp.MustCompile(`fastcgi_pass\s+[^;]+;`)

// SocketPath is the per-identity FPM socket the pool listens on.
func SocketPath(systemUser string) string {
	return fmt.Sprintf("/run/php/php-fpm-%s.sock", systemUser)
}

// PoolFilePath is the runtime-version-specific pool config location.
func (p *Provisioner) PoolFilePath(phpVersion, systemUser string) string {
	return filepath.Join(p.PHPBaseDir, phpVersion, "fpm", "pool.d", systemUser+".conf")
}

// identityLock serializes pool writes, FPM restarts and vhost patches for
// one system identity across concurrent jobs. Restarts are idempotent, so
// the lock only prevents interleaved pool-file writes and wasted restarts.
func (p *Provisioner) identityLock(systemUser string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	l, ok := p.locks[systemUser]
	if !ok {
		l = &sync.Mutex{}
		p.locks[systemUser] = l
	}
	return l
}

// Provision runs the full sequence. The returned error is recorded on the
// job; the HTTP caller only ever saw "queued".
func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) error {
	fail := func(step string, err error) error {
		p.Audit.Record("provisioner", "provision "+step+" failed", req.Domain, err.Error())
		p.Log.Errorw("provisioning failed", "domain", req.Domain, "step", step, "error", err)
		return fmt.Errorf("%s: %w", step, err)
	}

	// Step 1: base site creation via the site tool.
	if err := p.Tool.Create(ctx, req.Domain, req.PHPVersion, req.Features, req.Admin); err != nil {
		return fail("site create", err)
	}

	lock := p.identityLock(req.SystemUser)
	lock.Lock()

	// Step 2: ensure the system identity exists. Idempotent; an existing
	// user is left untouched.
	if err := p.EnsureSystemUser(ctx, req.SystemUser); err != nil {
		lock.Unlock()
		return fail("identity ensure", err)
	}

	// Step 3: render the per-identity worker pool and restart FPM for this
	// runtime version. The restart affects every site on that version on
	// this host.
	if err := p.writePool(ctx, req.PHPVersion, req.SystemUser); err != nil {
		lock.Unlock()
		return fail("pool generation", err)
	}

	// Step 4: point the vhost's PHP upstream at the new socket. On
	// validation failure the patched file is left in place for operator
	// inspection; contrast with the direct config-edit path, which reverts.
	if err := p.patchVhost(ctx, req.Domain, req.SystemUser); err != nil {
		lock.Unlock()
		return fail("vhost patch", err)
	}
	lock.Unlock()

	// Step 5: ownership fix.
	siteRoot := filepath.Join(p.WebRoot, req.Domain)
	if err := p.chownSite(ctx, req.SystemUser, siteRoot); err != nil {
		return fail("ownership fix", err)
	}

	// Step 6: archive deployment.
	if len(req.Plugins) > 0 {
		if err := p.deployArchives(req.Domain, req.Plugins); err != nil {
			return fail("archive deploy", err)
		}
		if err := p.chownSite(ctx, req.SystemUser, siteRoot); err != nil {
			return fail("ownership fix", err)
		}
	}

	p.Audit.Record("provisioner", "site provisioned", req.Domain, "success")
	return nil
}

// EnsureSystemUser creates the identity as a no-login system user if the
// probe shows it missing. Calling it twice performs creation at most once.
// Only a non-zero id exit means "missing"; a missing id binary or a
// cancelled context aborts rather than triggering a create.
func (p *Provisioner) EnsureSystemUser(ctx context.Context, systemUser string) error {
	_, err := p.Runner.Run(ctx, "id", "-u", systemUser)
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return fmt.Errorf("probe system user %s: %w", systemUser, err)
	}
	if _, err := p.Runner.Run(ctx, "useradd", "-m", "-s", "/bin/false", systemUser); err != nil {
		return fmt.Errorf("create system user %s: %w", systemUser, err)
	}
	return nil
}

func (p *Provisioner) writePool(ctx context.Context, phpVersion, systemUser string) error {
	conf := fmt.Sprintf(`[%s]
user = %s
group = %s
listen = %s
listen.owner = www-data
listen.group = www-data
pm = ondemand
pm.max_children = 5
pm.process_idle_timeout = 10s
chdir = /
`, systemUser, systemUser, systemUser, SocketPath(systemUser))

	poolFile := p.PoolFilePath(phpVersion, systemUser)
	if err := p.FS.WriteFile(poolFile, []byte(conf), 0o644); err != nil {
		return fmt.Errorf("write pool file: %w", err)
	}
	if _, err := p.Runner.Run(ctx, "systemctl", "restart", "php"+phpVersion+"-fpm"); err != nil {
		return fmt.Errorf("restart php%s-fpm: %w", phpVersion, err)
	}
	return nil
}

func (p *Provisioner) patchVhost(ctx context.Context, domain, systemUser string) error {
	vhostPath := filepath.Join(p.NginxSitesDir, domain)
	exists, err := p.FS.Exists(vhostPath)
	if err != nil {
		return fmt.Errorf("stat vhost: %w", err)
	}
	if !exists {
		// Nothing to patch; the site tool may not have written a vhost yet.
		return nil
	}

	content, err := p.FS.ReadFile(vhostPath)
	if err != nil {
		return fmt.Errorf("read vhost: %w", err)
	}
	patched := fastcgiPattern.ReplaceAllString(string(content),
		fmt.Sprintf("fastcgi_pass unix:%s;", SocketPath(systemUser)))
	if err := p.FS.WriteFile(vhostPath, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("write vhost: %w", err)
	}

	if _, err := p.Runner.Run(ctx, "nginx", "-t"); err != nil {
		return fmt.Errorf("nginx config validation: %w", err)
	}
	if _, err := p.Runner.Run(ctx, "systemctl", "reload", "nginx"); err != nil {
		return fmt.Errorf("reload nginx: %w", err)
	}
	return nil
}

func (p *Provisioner) chownSite(ctx context.Context, systemUser, siteRoot string) error {
	if _, err := p.Runner.Run(ctx, "chown", "-R", systemUser+":"+systemUser, siteRoot); err != nil {
		return fmt.Errorf("chown %s: %w", siteRoot, err)
	}
	return nil
}

func (p *Provisioner) deployArchives(domain string, keys []string) error {
	htdocs := filepath.Join(p.WebRoot, domain, "htdocs")
	for _, key := range keys {
		archivePath, err := p.Vault.Path(key)
		if err != nil {
			return fmt.Errorf("vault lookup %s: %w", key, err)
		}
		kind := vault.Classify(archivePath)
		target := filepath.Join(htdocs, "wp-content", "plugins")
		if kind == vault.TypeTheme {
			target = filepath.Join(htdocs, "wp-content", "themes")
		}
		if err := p.extractArchive(archivePath, target); err != nil {
			return fmt.Errorf("extract %s: %w", key, err)
		}
	}
	return nil
}

// extractArchive unpacks a vault zip through the injected filesystem so
// deployment also works against a remote host. Entries resolving outside
// the target directory are rejected.
func (p *Provisioner) extractArchive(archivePath, targetDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, entry := range reader.File {
		rel := path.Clean(entry.Name)
		if rel == "." || strings.HasPrefix(rel, "..") || path.IsAbs(rel) {
			return fmt.Errorf("archive entry %q escapes target", entry.Name)
		}
		dest := filepath.Join(targetDir, filepath.FromSlash(rel))
		if entry.FileInfo().IsDir() {
			if err := p.FS.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		src, err := entry.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return err
		}
		if err := p.FS.WriteFile(dest, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
