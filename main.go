package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"wopanel/audit"
	"wopanel/config"
	"wopanel/controllers"
	"wopanel/jobs"
	"wopanel/server"
	"wopanel/services"
	"wopanel/store"
	"wopanel/utils"
	"wopanel/vault"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg.LogLevel, cfg.Environment); err != nil {
		panic(err)
	}
	log := utils.Sugar()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalw("open database", "path", cfg.DatabasePath, "error", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalw("hash initial admin password", "error", err)
	}
	if err := db.SeedAdmin("admin", string(hashed)); err != nil {
		log.Fatalw("seed admin account", "error", err)
	}

	trail, err := audit.New(cfg.AuditLogPath)
	if err != nil {
		log.Fatalw("open audit trail", "path", cfg.AuditLogPath, "error", err)
	}

	var runner services.Runner = services.ExecRunner{}
	var fs services.FS = services.OSFS{}
	if cfg.Remote() {
		client, err := services.GetSSHClient(cfg)
		if err != nil {
			log.Fatalw("ssh connect", "host", cfg.SSHHost, "error", err)
		}
		sftpFS, err := services.NewSFTPFS(client)
		if err != nil {
			log.Fatalw("sftp session", "host", cfg.SSHHost, "error", err)
		}
		runner = &services.SSHRunner{Client: client}
		fs = sftpFS
		log.Infow("managing remote host", "host", cfg.SSHHost)
	}

	vaultStore, err := vault.NewStore(cfg.VaultDir)
	if err != nil {
		log.Fatalw("open vault", "dir", cfg.VaultDir, "error", err)
	}

	tool := &services.SiteTool{Bin: cfg.SiteToolBin, Runner: runner}
	prov := &services.Provisioner{
		Runner:        runner,
		FS:            fs,
		Tool:          tool,
		Vault:         vaultStore,
		Audit:         trail,
		Log:           log,
		WebRoot:       cfg.WebRoot,
		PHPBaseDir:    cfg.PHPBaseDir,
		NginxSitesDir: cfg.NginxSitesDir,
	}
	teardown := &services.Teardown{
		Runner:      runner,
		FS:          fs,
		Tool:        tool,
		Audit:       trail,
		Log:         log,
		PHPBaseDir:  cfg.PHPBaseDir,
		PHPVersions: cfg.PHPVersions,
		Provisioner: prov,
	}
	nginx := &services.NginxEditor{
		Runner:     runner,
		FS:         fs,
		Log:        log,
		SitesDir:   cfg.NginxSitesDir,
		EnabledDir: cfg.NginxEnabledDir,
	}
	system := &services.SystemService{Runner: runner, PHPBaseDir: cfg.PHPBaseDir}
	manager := &jobs.Manager{Store: db, Log: log}

	api := &controllers.API{
		Cfg:      cfg,
		Store:    db,
		Audit:    trail,
		Jobs:     manager,
		Tool:     tool,
		Resolver: services.NewResolver(tool),
		Prov:     prov,
		Teardown: teardown,
		Nginx:    nginx,
		System:   system,
		Vault:    vaultStore,
		Log:      log,
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Billing-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server.SetupRoutes(router, api)

	log.Infow("listening", "addr", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalw("server exited", "error", err)
	}
}
