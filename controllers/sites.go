package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wopanel/models"
	"wopanel/services"
)

func (a *API) ListSites(c *gin.Context) {
	c.JSON(http.StatusOK, a.Resolver.ListSites(c.Request.Context()))
}

func (a *API) GetSite(c *gin.Context) {
	domain := c.Param("domain")
	if err := models.ValidateDomain(domain); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.Resolver.Resolve(c.Request.Context(), domain))
}

type createSiteRequest struct {
	Domain     string   `json:"domain" binding:"required"`
	PHPVersion string   `json:"php_version"`
	Features   []string `json:"features"`
	Plugins    []string `json:"plugins"`
	SystemUser string   `json:"system_user"`
	AdminUser  string   `json:"admin_user"`
	AdminEmail string   `json:"admin_email"`
	AdminPass  string   `json:"admin_pass"`
}

// CreateSite records the site, then queues the provisioning sequence.
// The caller gets "queued" immediately; progress lives in the job record.
func (a *API) CreateSite(c *gin.Context) {
	var req createSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.ValidateDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	phpVersion := req.PHPVersion
	if phpVersion == "" {
		phpVersion = a.Cfg.DefaultPHP
	}

	systemUser := req.SystemUser
	if systemUser == "" {
		systemUser = models.DeriveSystemUser(req.Domain)
	}
	if err := models.ValidateSystemUser(systemUser); err != nil {
		respondError(c, err)
		return
	}
	tenant, err := a.Store.EnsureTenant(systemUser, "")
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := a.Store.CreateSite(req.Domain, &tenant.ID, phpVersion); err != nil {
		respondError(c, err)
		return
	}

	preq := services.ProvisionRequest{
		Domain:     req.Domain,
		PHPVersion: phpVersion,
		Features:   req.Features,
		Plugins:    req.Plugins,
		SystemUser: systemUser,
	}
	if req.AdminUser != "" {
		preq.Admin = &services.AdminCredentials{User: req.AdminUser, Email: req.AdminEmail, Pass: req.AdminPass}
	}
	jobID := a.Jobs.Enqueue("provision", req.Domain, func(ctx context.Context) error {
		return a.Prov.Provision(ctx, preq)
	})
	a.Audit.Record(currentUser(c).Username, "site creation queued", req.Domain, "queued")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job_id": jobID})
}

// DeleteSite queues the full teardown: wo delete, pool files, vhost,
// ownership. The registry row goes with the job so a failed teardown
// stays visible in the site list.
func (a *API) DeleteSite(c *gin.Context) {
	domain := c.Param("domain")
	if err := models.ValidateDomain(domain); err != nil {
		respondError(c, err)
		return
	}
	site, err := a.Store.GetSiteByDomain(domain)
	if err != nil {
		respondError(c, err)
		return
	}
	systemUser := models.DeriveSystemUser(domain)
	if site.TenantID != nil {
		if tenant, terr := a.Store.GetTenant(*site.TenantID); terr == nil {
			systemUser = tenant.SystemUsername
		}
	}
	phpVersion := site.PHPVersion

	actor := currentUser(c).Username
	jobID := a.Jobs.Enqueue("teardown", domain, func(ctx context.Context) error {
		if err := a.Teardown.TeardownSite(ctx, domain, systemUser, phpVersion); err != nil {
			return err
		}
		return a.Store.DeleteSiteByDomain(domain)
	})
	a.Audit.Record(actor, "site teardown queued", domain, "queued")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job_id": jobID})
}

type sslRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) UpdateSiteSSL(c *gin.Context) {
	domain := c.Param("domain")
	var req sslRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Tool.UpdateSSL(c.Request.Context(), domain, req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	outcome := "disabled"
	if req.Enabled {
		outcome = "enabled"
	}
	a.Audit.Record(currentUser(c).Username, "site ssl updated", domain, outcome)
	c.JSON(http.StatusOK, gin.H{"message": "SSL updated"})
}

type phpUpdateRequest struct {
	PHPVersion string `json:"php_version" binding:"required"`
}

func (a *API) UpdateSitePHP(c *gin.Context) {
	domain := c.Param("domain")
	var req phpUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Tool.UpdatePHP(c.Request.Context(), domain, req.PHPVersion); err != nil {
		respondError(c, err)
		return
	}
	if site, err := a.Store.GetSiteByDomain(domain); err == nil {
		site.PHPVersion = req.PHPVersion
		if err := a.Store.SaveSite(site); err != nil {
			a.Log.Errorw("site record update failed", "domain", domain, "error", err)
		}
	}
	a.Audit.Record(currentUser(c).Username, "site php updated", domain, req.PHPVersion)
	c.JSON(http.StatusOK, gin.H{"message": "PHP version updated"})
}

func (a *API) ClearSiteCache(c *gin.Context) {
	domain := c.Param("domain")
	if err := a.Tool.CleanCache(c.Request.Context(), domain); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(currentUser(c).Username, "site cache cleared", domain, "success")
	c.JSON(http.StatusOK, gin.H{"message": "Cache cleared"})
}

func (a *API) GetSiteNginxConfig(c *gin.Context) {
	content, err := a.Nginx.GetConfig(c.Param("domain"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

type nginxConfigRequest struct {
	Content string `json:"content" binding:"required"`
}

func (a *API) SaveSiteNginxConfig(c *gin.Context) {
	domain := c.Param("domain")
	var req nginxConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Nginx.SaveConfig(c.Request.Context(), domain, req.Content); err != nil {
		a.Audit.Record(currentUser(c).Username, "nginx config saved", domain, "failure")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.Audit.Record(currentUser(c).Username, "nginx config saved", domain, "success")
	c.JSON(http.StatusOK, gin.H{"message": "Configuration saved and reloaded"})
}

type bulkDeployRequest struct {
	Domains    []string `json:"domains" binding:"required"`
	PHPVersion string   `json:"php_version"`
	Features   []string `json:"features"`
	Plugins    []string `json:"plugins"`
	SystemUser string   `json:"system_user"`
}

// BulkDeploy queues one provisioning job per valid domain. Invalid
// domains are skipped, not fatal; the shared group id ties the jobs
// together in listings.
func (a *API) BulkDeploy(c *gin.Context) {
	var req bulkDeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	phpVersion := req.PHPVersion
	if phpVersion == "" {
		phpVersion = a.Cfg.DefaultPHP
	}
	group := uuid.New().String()
	actor := currentUser(c).Username

	queued := make([]string, 0, len(req.Domains))
	skipped := make([]string, 0)
	for _, domain := range req.Domains {
		if err := models.ValidateDomain(domain); err != nil {
			skipped = append(skipped, domain)
			continue
		}
		systemUser := req.SystemUser
		if systemUser == "" {
			systemUser = models.DeriveSystemUser(domain)
		}
		tenant, err := a.Store.EnsureTenant(systemUser, "")
		if err != nil {
			skipped = append(skipped, domain)
			continue
		}
		if _, err := a.Store.CreateSite(domain, &tenant.ID, phpVersion); err != nil {
			skipped = append(skipped, domain)
			continue
		}
		preq := services.ProvisionRequest{
			Domain:     domain,
			PHPVersion: phpVersion,
			Features:   req.Features,
			Plugins:    req.Plugins,
			SystemUser: systemUser,
		}
		a.Jobs.Enqueue("provision:"+group, domain, func(ctx context.Context) error {
			return a.Prov.Provision(ctx, preq)
		})
		queued = append(queued, domain)
	}
	a.Audit.Record(actor, "bulk deploy queued", group, "queued")
	c.JSON(http.StatusAccepted, gin.H{
		"status":   "queued",
		"group_id": group,
		"queued":   queued,
		"skipped":  skipped,
	})
}
