package models

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Roles understood by the authorization layer.
const (
	RoleAdministrator = "administrator"
	RoleReadOnly      = "read-only"
)

// Tenant lifecycle statuses.
const (
	TenantActive    = "active"
	TenantSuspended = "suspended"
)

var (
	ErrInvalidDomain   = errors.New("invalid domain format")
	ErrInvalidIdentity = errors.New("invalid system username")
)

// User is a panel account.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"uniqueIndex" json:"username"`
	HashedPassword string    `json:"-"`
	Role           string    `gorm:"default:read-only" json:"role"`
	MFASecret      string    `json:"-"`
	MFAEnabled     bool      `json:"mfa_enabled"`
	CreatedAt      time.Time `json:"created_at"`
}

// Tenant is a hosting customer owning zero or more sites. SystemUsername is
// the POSIX account its sites run under and is immutable once created:
// renaming it would orphan live pool and vhost configs.
type Tenant struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SystemUsername string    `gorm:"uniqueIndex" json:"username"`
	Email          string    `gorm:"index" json:"email"`
	Status         string    `gorm:"default:active" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	Sites          []Site    `gorm:"foreignKey:TenantID" json:"-"`
}

// Site is one hosted domain. The row is created in a pending state before
// provisioning starts so duplicate domains are rejected at the registry;
// the OS-level artifacts follow asynchronously.
type Site struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Domain     string    `gorm:"uniqueIndex" json:"domain"`
	TenantID   *uint     `gorm:"index" json:"tenant_id,omitempty"`
	PHPVersion string    `gorm:"default:8.1" json:"php_version"`
	CreatedAt  time.Time `json:"created_at"`
}

// Job states.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job records one background operation so operators can query outcomes
// instead of scraping logs. The API contract stays fire-and-forget.
type Job struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Kind       string     `json:"kind"`
	Target     string     `json:"target"`
	State      string     `gorm:"index" json:"state"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Claims carried in panel JWTs.
type Claims struct {
	Username  string `json:"sub"`
	Role      string `json:"role"`
	MFAPassed bool   `json:"mfa_passed"`
	TokenType string `json:"type,omitempty"`
	jwt.StandardClaims
}

// Strict DNS-label grammar: lowercase letters/digits/hyphens, labels of
// 1-63 characters, no leading or trailing hyphen.
var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

// ValidateDomain checks a domain against the DNS-label grammar.
func ValidateDomain(domain string) error {
	if domain == "" || !domainPattern.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

var identityPattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)

// ValidateSystemUser checks a POSIX username (32 char ceiling).
func ValidateSystemUser(name string) error {
	if name == "" || len(name) > 32 || !identityPattern.MatchString(name) {
		return ErrInvalidIdentity
	}
	return nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// DeriveSystemUser builds the standalone-site identity from a domain:
// "u_" plus the sanitized first DNS label, truncated. example.com -> u_example.
func DeriveSystemUser(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	slug := nonAlnum.ReplaceAllString(strings.ToLower(label), "")
	if len(slug) > 12 {
		slug = slug[:12]
	}
	return "u_" + slug
}

// SiteStatus is the composite snapshot assembled by the resolver. It is
// always a valid result; degraded resolutions carry Status "error" and an
// ErrorMessage instead of failing.
type SiteStatus struct {
	Domain       string      `json:"domain"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	IP           string      `json:"ip"`
	User         string      `json:"user"`
	Root         string      `json:"root"`
	SSL          SSLStatus   `json:"ssl"`
	Stack        StackStatus `json:"stack"`
	Cache        CacheStatus `json:"cache"`
	DB           DBStatus    `json:"db"`
}

type SSLStatus struct {
	Enabled    bool   `json:"enabled"`
	Provider   string `json:"provider,omitempty"`
	Expires    string `json:"expires,omitempty"`
	ForceHTTPS bool   `json:"forceHttps"`
}

type StackStatus struct {
	Type   string `json:"type,omitempty"`
	PHP    string `json:"php,omitempty"`
	Server string `json:"server,omitempty"`
}

type CacheStatus struct {
	Backend string `json:"backend,omitempty"`
	Status  string `json:"status,omitempty"`
}

type DBStatus struct {
	Name string `json:"name,omitempty"`
	User string `json:"user,omitempty"`
	Host string `json:"host,omitempty"`
}

// SiteSummary is the lightweight listing row.
type SiteSummary struct {
	ID     int    `json:"id"`
	Domain string `json:"domain"`
	Status string `json:"status"`
	PHP    string `json:"php"`
	SSL    bool   `json:"ssl"`
	Cache  string `json:"cache"`
	DB     bool   `json:"db"`
}
