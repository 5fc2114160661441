package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// serviceActionTimeout bounds systemctl invocations on the fast
// administrative path; a hung unit becomes a reported error, not a hang.
const serviceActionTimeout = 30 * time.Second

// serviceAliases maps API names onto systemd unit names.
var serviceAliases = map[string]string{
	"nginx":        "nginx",
	"mariadb":      "mariadb",
	"mysql":        "mariadb",
	"redis":        "redis-server",
	"redis-server": "redis-server",
}

// ServiceStatus describes one host service.
type ServiceStatus struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// SystemStats is a point-in-time host snapshot.
type SystemStats struct {
	CPU    float64    `json:"cpu"`
	RAM    UsageGauge `json:"ram"`
	Disk   UsageGauge `json:"disk"`
	Uptime string     `json:"uptime"`
}

// UsageGauge is used/total in gigabytes.
type UsageGauge struct {
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// PHPExtension is one module of a runtime version.
type PHPExtension struct {
	Name    string `json:"name"`
	Enabled bool   `json:"status"`
	Desc    string `json:"desc"`
}

// SystemService wraps host-level queries and service control.
type SystemService struct {
	Runner     Runner
	PHPBaseDir string
}

// ManageService runs a start/stop/restart with a hard timeout.
func (s *SystemService) ManageService(ctx context.Context, service, action string) error {
	unit := service
	if mapped, ok := serviceAliases[strings.ToLower(service)]; ok {
		unit = mapped
	}
	ctx, cancel := context.WithTimeout(ctx, serviceActionTimeout)
	defer cancel()
	if _, err := s.Runner.Run(ctx, "systemctl", action, unit); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("command timeout: systemctl %s %s", action, unit)
		}
		return err
	}
	return nil
}

var knownServices = []struct{ name, unit string }{
	{"NGINX", "nginx"},
	{"MariaDB", "mariadb"},
	{"Redis", "redis-server"},
	{"PHP 8.0-FPM", "php8.0-fpm"},
	{"PHP 8.1-FPM", "php8.1-fpm"},
	{"PHP 8.2-FPM", "php8.2-fpm"},
	{"PHP 8.3-FPM", "php8.3-fpm"},
	{"UFW", "ufw"},
}

// ListServices probes the fixed host stack; units systemd does not know
// are filtered out. is-active exits non-zero for anything not running,
// so the exit status is neutralized and the answer read from stdout.
func (s *SystemService) ListServices(ctx context.Context) []ServiceStatus {
	results := make([]ServiceStatus, 0, len(knownServices))
	for _, svc := range knownServices {
		out, _ := s.Runner.Run(ctx, "sh", "-c", "systemctl is-active "+svc.unit+" || true")
		out = strings.TrimSpace(out)
		if out == "" || strings.Contains(out, "unknown") {
			continue
		}
		running := out == "active"
		status := "stopped"
		uptime := "Inactive"
		if running {
			status = "running"
			uptime = "Active"
		}
		results = append(results, ServiceStatus{
			Name:    svc.name,
			Service: svc.unit,
			Status:  status,
			Version: s.serviceVersion(ctx, svc.unit),
			Uptime:  uptime,
		})
	}
	return results
}

var (
	nginxVersionPattern   = regexp.MustCompile(`nginx/([\d.]+)`)
	phpVersionOutPattern  = regexp.MustCompile(`PHP ([\d.]+)`)
	mariadbVersionPattern = regexp.MustCompile(`Distrib ([\d.]+)`)
	redisVersionPattern   = regexp.MustCompile(`v=([\d.]+)`)
)

func (s *SystemService) serviceVersion(ctx context.Context, unit string) string {
	version := "Unknown"
	switch {
	case strings.Contains(unit, "nginx"):
		// nginx prints its version on stderr.
		out, _ := s.Runner.Run(ctx, "sh", "-c", "nginx -v 2>&1")
		if m := nginxVersionPattern.FindStringSubmatch(out); m != nil {
			version = m[1]
		}
	case strings.HasPrefix(unit, "php"):
		bin, _, _ := strings.Cut(unit, "-")
		out, _ := s.Runner.Run(ctx, bin, "-v")
		if m := phpVersionOutPattern.FindStringSubmatch(out); m != nil {
			version = m[1]
		}
	case strings.Contains(unit, "mariadb"):
		out, _ := s.Runner.Run(ctx, "mariadb", "--version")
		if m := mariadbVersionPattern.FindStringSubmatch(out); m != nil {
			version = m[1]
		}
	case strings.Contains(unit, "redis"):
		out, _ := s.Runner.Run(ctx, "redis-server", "--version")
		if m := redisVersionPattern.FindStringSubmatch(out); m != nil {
			version = m[1]
		}
	}
	return version
}

// Stats reads host metrics from /proc and statfs. Thin by design.
func (s *SystemService) Stats() SystemStats {
	stats := SystemStats{Uptime: "N/A"}

	if data, err := os.ReadFile("/proc/uptime"); err == nil {
		if fields := strings.Fields(string(data)); len(fields) > 0 {
			if seconds, err := strconv.ParseFloat(fields[0], 64); err == nil {
				total := int64(seconds)
				stats.Uptime = fmt.Sprintf("%dd %dh %dm",
					total/86400, (total%86400)/3600, (total%3600)/60)
			}
		}
	}
	if data, err := os.ReadFile("/proc/loadavg"); err == nil {
		if fields := strings.Fields(string(data)); len(fields) > 0 {
			stats.CPU, _ = strconv.ParseFloat(fields[0], 64)
		}
	}
	if data, err := os.ReadFile("/proc/meminfo"); err == nil {
		var totalKB, availKB float64
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			switch fields[0] {
			case "MemTotal:":
				totalKB, _ = strconv.ParseFloat(fields[1], 64)
			case "MemAvailable:":
				availKB, _ = strconv.ParseFloat(fields[1], 64)
			}
		}
		stats.RAM = UsageGauge{
			Used:  round2((totalKB - availKB) / (1024 * 1024)),
			Total: round2(totalKB / (1024 * 1024)),
		}
	}
	var fs syscall.Statfs_t
	if err := syscall.Statfs("/", &fs); err == nil {
		total := float64(fs.Blocks) * float64(fs.Bsize)
		free := float64(fs.Bavail) * float64(fs.Bsize)
		stats.Disk = UsageGauge{
			Used:  round2((total - free) / (1 << 30)),
			Total: round2(total / (1 << 30)),
		}
	}
	return stats
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// PHPExtensions lists the modules of a runtime version with their
// enabled state, sorted by name.
func (s *SystemService) PHPExtensions(version string) []PHPExtension {
	modsAvailable := filepath.Join(s.PHPBaseDir, version, "mods-available")
	confD := filepath.Join(s.PHPBaseDir, version, "fpm", "conf.d")

	available, err := os.ReadDir(modsAvailable)
	if err != nil {
		return nil
	}
	enabledNames := map[string]bool{}
	if enabled, err := os.ReadDir(confD); err == nil {
		for _, e := range enabled {
			enabledNames[e.Name()] = true
		}
	}

	extensions := make([]PHPExtension, 0, len(available))
	for _, entry := range available {
		name := entry.Name()
		if !strings.HasSuffix(name, ".ini") {
			continue
		}
		enabled := false
		for enabledName := range enabledNames {
			if strings.HasSuffix(enabledName, name) {
				enabled = true
				break
			}
		}
		extensions = append(extensions, PHPExtension{
			Name:    strings.TrimSuffix(name, ".ini"),
			Enabled: enabled,
			Desc:    fmt.Sprintf("PHP %s Extension", version),
		})
	}
	sort.Slice(extensions, func(i, j int) bool { return extensions[i].Name < extensions[j].Name })
	return extensions
}

// ManagePHPExtension enables or disables a module and restarts FPM for
// that runtime version.
func (s *SystemService) ManagePHPExtension(ctx context.Context, version, extension, action string) error {
	cmd := "phpenmod"
	if action == "disable" {
		cmd = "phpdismod"
	}
	if _, err := s.Runner.Run(ctx, cmd, "-v", version, extension); err != nil {
		return err
	}
	_, err := s.Runner.Run(ctx, "systemctl", "restart", "php"+version+"-fpm")
	return err
}

// TailLog returns the last n lines of a log file.
func (s *SystemService) TailLog(ctx context.Context, path string, n int) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("log file not found: %s", path)
	}
	out, err := s.Runner.Run(ctx, "tail", "-n", strconv.Itoa(n), path)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

// FollowLog streams a log file line by line until ctx is cancelled. The
// underlying tail subprocess is killed promptly on cancellation so a
// disconnected client never leaks a follower.
func (s *SystemService) FollowLog(ctx context.Context, path string) (<-chan string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("log file not found: %s", path)
	}
	cmd := exec.CommandContext(ctx, "tail", "-f", "-n", "20", path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		defer cmd.Wait() //nolint:errcheck // exit status is irrelevant once the stream ends
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines, nil
}
