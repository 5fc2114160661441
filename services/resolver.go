package services

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"wopanel/models"
)

// infoRule is one entry of the site-info grammar: a labelled value scraped
// from the tool's free-text output, with an explicit default when the
// label is absent.
type infoRule struct {
	key      string
	pattern  *regexp.Regexp
	fallback string
}

var infoGrammar = []infoRule{
	{"php", regexp.MustCompile(`PHP Version\s+:\s+(.*)`), "N/A"},
	{"ssl", regexp.MustCompile(`SSL\s+:\s+(.*)`), "Disabled"},
	{"type", regexp.MustCompile(`Type\s+:\s+(.*)`), "WordPress"},
	{"cache", regexp.MustCompile(`Cache\s+:\s+(.*)`), "None"},
}

// ParseSiteInfo applies the grammar to raw `site info` output.
func ParseSiteInfo(raw string) map[string]string {
	fields := make(map[string]string, len(infoGrammar))
	for _, rule := range infoGrammar {
		fields[rule.key] = rule.fallback
		if m := rule.pattern.FindStringSubmatch(raw); m != nil {
			fields[rule.key] = strings.TrimSpace(m[1])
		}
	}
	return fields
}

// ClassifyCache maps the raw cache label onto the known backend
// vocabulary; anything unrecognized is "none".
func ClassifyCache(raw string) string {
	switch {
	case strings.Contains(raw, "Redis"):
		return "Redis"
	case strings.Contains(raw, "FastCGI"):
		return "FastCGI"
	case strings.Contains(raw, "WpSuperCache"):
		return "WP Super Cache"
	default:
		return "none"
	}
}

// Resolver assembles a structured status snapshot for one domain from the
// site tool plus live network probes. The probes are best-effort: flaky
// DNS or a firewall yields a false "offline", never an error.
type Resolver struct {
	Tool *SiteTool

	// Probe hooks, replaceable in tests.
	lookupHost func(ctx context.Context, host string) ([]string, error)
	dialPort80 func(ctx context.Context, addr string) error
	fetchCert  func(domain string) (*x509.Certificate, error)
	now        func() time.Time
}

// NewResolver wires the default network probes.
func NewResolver(tool *SiteTool) *Resolver {
	return &Resolver{
		Tool: tool,
		lookupHost: func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		},
		dialPort80: func(_ context.Context, addr string) error {
			conn, err := net.DialTimeout("tcp", addr, time.Second)
			if err != nil {
				return err
			}
			return conn.Close()
		},
		fetchCert: fetchPeerCertificate,
		now:       time.Now,
	}
}

// fetchPeerCertificate inspects the certificate a server actually
// presents. Verification is off on purpose: this is a diagnostic probe,
// not a trust decision.
func fetchPeerCertificate(domain string) (*x509.Certificate, error) {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", domain+":443", &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // diagnostic probe of the presented cert
		ServerName:         domain,
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, fmt.Errorf("no peer certificate")
	}
	return certs[0], nil
}

// Resolve never fails outward: any internal error degrades to a status
// record with Status "error" and a populated ErrorMessage.
func (r *Resolver) Resolve(ctx context.Context, domain string) models.SiteStatus {
	raw, err := r.Tool.InfoRaw(ctx, domain)
	if err != nil {
		return models.SiteStatus{
			Domain:       domain,
			Status:       "error",
			ErrorMessage: err.Error(),
			IP:           "N/A",
			User:         "N/A",
			Root:         "N/A",
		}
	}

	fields := ParseSiteInfo(raw)

	ip := "N/A"
	status := "offline"
	if addrs, lookupErr := r.lookupHost(ctx, domain); lookupErr == nil && len(addrs) > 0 {
		ip = addrs[0]
		if r.dialPort80(ctx, net.JoinHostPort(ip, "80")) == nil {
			status = "online"
		}
	}

	sslEnabled := strings.Contains(fields["ssl"], "Enabled")
	expires := "N/A"
	if sslEnabled {
		expires = "unknown"
		if cert, certErr := r.fetchCert(domain); certErr == nil {
			days := int(cert.NotAfter.Sub(r.now()).Hours() / 24)
			expires = fmt.Sprintf("%d days", days)
		}
	}
	provider := "Self-signed"
	if strings.Contains(fields["ssl"], "Let's Encrypt") {
		provider = "Let's Encrypt"
	}

	backend := ClassifyCache(fields["cache"])
	cacheState := "enabled"
	if backend == "none" {
		cacheState = "disabled"
	}

	return models.SiteStatus{
		Domain: domain,
		Status: status,
		IP:     ip,
		User:   "www-data",
		Root:   fmt.Sprintf("/var/www/%s/htdocs", domain),
		SSL: models.SSLStatus{
			Enabled:    sslEnabled,
			Provider:   provider,
			Expires:    expires,
			ForceHTTPS: true,
		},
		Stack: models.StackStatus{
			Type:   fields["type"],
			PHP:    fields["php"],
			Server: "NGINX",
		},
		Cache: models.CacheStatus{
			Backend: backend,
			Status:  cacheState,
		},
		DB: models.DBStatus{
			Name: "wo_" + strings.ReplaceAll(domain, ".", "_"),
			User: "wo_user",
			Host: "localhost",
		},
	}
}

// ListSites resolves every hosted domain into a summary row. Resolution
// of each site is independent; a degraded site still appears in the list.
func (r *Resolver) ListSites(ctx context.Context) []models.SiteSummary {
	domains, err := r.Tool.List(ctx)
	if err != nil {
		return []models.SiteSummary{}
	}
	summaries := make([]models.SiteSummary, 0, len(domains))
	for idx, domain := range domains {
		details := r.Resolve(ctx, domain)
		summaries = append(summaries, models.SiteSummary{
			ID:     idx + 1,
			Domain: domain,
			Status: details.Status,
			PHP:    details.Stack.PHP,
			SSL:    details.SSL.Enabled,
			Cache:  details.Cache.Backend,
			DB:     true,
		})
	}
	return summaries
}
