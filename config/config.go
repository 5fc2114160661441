package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Values come from the environment; a
// .env file in the working directory is loaded first when present.
type Config struct {
	ListenAddr   string
	Environment  string // "development" or "production"
	LogLevel     string
	CORSOrigins  []string

	SecretKey            string
	BillingAPIKey        string
	InitialAdminPassword string

	DatabasePath string
	VaultDir     string
	AuditLogPath string

	// Host layout. These mirror the conventions of the site tool and are
	// only overridden in tests.
	SiteToolBin      string
	WebRoot          string
	NginxSitesDir    string
	NginxEnabledDir  string
	PHPBaseDir       string
	PHPVersions      []string
	DefaultPHP       string

	// When SSHHost is set the panel drives a remote host over SSH/SFTP
	// instead of the local machine.
	SSHUser     string
	SSHHost     string
	SSHPassword string
}

// Load reads configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:           getenv("WOPANEL_LISTEN", ":8081"),
		Environment:          getenv("WOPANEL_ENV", "development"),
		LogLevel:             getenv("WOPANEL_LOG_LEVEL", "info"),
		CORSOrigins:          splitList(getenv("WOPANEL_CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		SecretKey:            getenv("SECRET_KEY", "change-this-in-production-please"),
		BillingAPIKey:        getenv("BILLING_API_KEY", "change-this-billing-key"),
		InitialAdminPassword: getenv("INITIAL_ADMIN_PASSWORD", "password"),
		DatabasePath:         getenv("WOPANEL_DB", "wopanel.db"),
		VaultDir:             getenv("WOPANEL_VAULT_DIR", "/opt/wopanel/vault"),
		AuditLogPath:         getenv("WOPANEL_AUDIT_LOG", "wopanel-audit.log"),
		SiteToolBin:          getenv("WOPANEL_SITE_TOOL", "wo"),
		WebRoot:              getenv("WOPANEL_WEB_ROOT", "/var/www"),
		NginxSitesDir:        getenv("WOPANEL_NGINX_SITES", "/etc/nginx/sites-available"),
		NginxEnabledDir:      getenv("WOPANEL_NGINX_ENABLED", "/etc/nginx/sites-enabled"),
		PHPBaseDir:           getenv("WOPANEL_PHP_BASE", "/etc/php"),
		PHPVersions:          splitList(getenv("WOPANEL_PHP_VERSIONS", "8.0,8.1,8.2,8.3")),
		DefaultPHP:           getenv("WOPANEL_PHP_DEFAULT", "8.1"),
		SSHUser:              os.Getenv("SSH_USER"),
		SSHHost:              os.Getenv("SSH_HOST"),
		SSHPassword:          os.Getenv("SSH_PASSWORD"),
	}
	return cfg
}

// Remote reports whether the panel manages a remote host over SSH.
func (c *Config) Remote() bool {
	return c.SSHHost != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
