package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wopanel/audit"
)

// Teardown reverses provisioning. Every sub-step is independently
// best-effort: a failure is logged and recorded but never blocks the
// remaining cleanup.
type Teardown struct {
	Runner Runner
	FS     FS
	Tool   *SiteTool
	Audit  *audit.Trail
	Log    *zap.SugaredLogger

	PHPBaseDir  string
	PHPVersions []string
	Provisioner *Provisioner // shares the per-identity locks
}

// TeardownSite deletes one site and cleans up its identity and pool for
// the given runtime version. The joined error reflects partial failures
// in the job record; no step is skipped because an earlier one failed.
func (t *Teardown) TeardownSite(ctx context.Context, domain, systemUser, phpVersion string) error {
	var failures []error

	if err := t.Tool.Delete(ctx, domain); err != nil {
		failures = append(failures, fmt.Errorf("site delete: %w", err))
		t.Audit.Record("teardown", "site delete failed", domain, err.Error())
	}

	failures = append(failures, t.removeIdentity(ctx, systemUser)...)
	failures = append(failures, t.removePools(ctx, systemUser, []string{phpVersion})...)

	if len(failures) == 0 {
		t.Audit.Record("teardown", "site torn down", domain, "success")
		return nil
	}
	return errors.Join(failures...)
}

// TeardownTenant tears down every owned site, then the shared identity,
// then sweeps pool files across all supported runtime versions. The
// tenant's registry record is already gone by the time this runs; that
// eventual-consistency window is accepted.
func (t *Teardown) TeardownTenant(ctx context.Context, systemUser string, domains []string) error {
	var failures []error

	for _, domain := range domains {
		if err := t.Tool.Delete(ctx, domain); err != nil {
			failures = append(failures, fmt.Errorf("site delete %s: %w", domain, err))
			t.Audit.Record("teardown", "site delete failed", domain, err.Error())
		}
	}

	failures = append(failures, t.removeIdentity(ctx, systemUser)...)
	failures = append(failures, t.removePools(ctx, systemUser, t.PHPVersions)...)

	if len(failures) == 0 {
		t.Audit.Record("teardown", "tenant torn down", systemUser, "success")
		return nil
	}
	return errors.Join(failures...)
}

// removeIdentity signals every process owned by the identity and removes
// the POSIX user with its home directory.
func (t *Teardown) removeIdentity(ctx context.Context, systemUser string) []error {
	var failures []error
	if _, err := t.Runner.Run(ctx, "pkill", "-u", systemUser); err != nil {
		// pkill exits 1 when no process matched; only surface real failures.
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) || cmdErr.ExitCode > 1 {
			failures = append(failures, fmt.Errorf("pkill %s: %w", systemUser, err))
			t.Log.Warnw("pkill failed", "user", systemUser, "error", err)
		}
	}
	if _, err := t.Runner.Run(ctx, "userdel", "-r", systemUser); err != nil {
		failures = append(failures, fmt.Errorf("userdel %s: %w", systemUser, err))
		t.Log.Warnw("userdel failed", "user", systemUser, "error", err)
	}
	return failures
}

// removePools deletes the identity's pool file for each runtime version
// that has one and restarts that version's worker manager.
func (t *Teardown) removePools(ctx context.Context, systemUser string, versions []string) []error {
	var failures []error
	for _, ver := range versions {
		poolFile := t.Provisioner.PoolFilePath(ver, systemUser)
		exists, err := t.FS.Exists(poolFile)
		if err != nil || !exists {
			continue
		}
		if err := t.FS.Remove(poolFile); err != nil {
			failures = append(failures, fmt.Errorf("remove pool %s: %w", poolFile, err))
			continue
		}
		if _, err := t.Runner.Run(ctx, "systemctl", "restart", "php"+ver+"-fpm"); err != nil {
			failures = append(failures, fmt.Errorf("restart php%s-fpm: %w", ver, err))
		}
	}
	return failures
}
