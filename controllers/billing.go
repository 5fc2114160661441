package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wopanel/models"
	"wopanel/services"
)

type billingCreateRequest struct {
	Domain         string `json:"domain" binding:"required"`
	SystemUsername string `json:"system_username"`
	Email          string `json:"email"`
	PHPVersion     string `json:"php_version"`
}

// BillingCreate is the billing-system provisioning hook: upsert the
// tenant, record the site, queue the full isolation sequence.
func (a *API) BillingCreate(c *gin.Context) {
	var req billingCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.ValidateDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	systemUser := req.SystemUsername
	if systemUser == "" {
		systemUser = models.DeriveSystemUser(req.Domain)
	}
	tenant, err := a.Store.EnsureTenant(systemUser, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	phpVersion := req.PHPVersion
	if phpVersion == "" {
		phpVersion = a.Cfg.DefaultPHP
	}
	if _, err := a.Store.CreateSite(req.Domain, &tenant.ID, phpVersion); err != nil {
		respondError(c, err)
		return
	}
	preq := services.ProvisionRequest{
		Domain:     req.Domain,
		PHPVersion: phpVersion,
		Features:   []string{"ssl", "cache"},
		SystemUser: systemUser,
	}
	jobID := a.Jobs.Enqueue("billing-provision", req.Domain, func(ctx context.Context) error {
		return a.Prov.Provision(ctx, preq)
	})
	a.Audit.Record("billing", "site creation queued", req.Domain, "queued")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job_id": jobID})
}

type billingDomainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// BillingSuspend takes one site off the web server without touching its
// data: the sites-enabled link is unlinked and the proxy reloaded.
func (a *API) BillingSuspend(c *gin.Context) {
	var req billingDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.ValidateDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	if _, err := a.Store.GetSiteByDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	if err := a.Nginx.DisableSite(c.Request.Context(), req.Domain); err != nil {
		a.Audit.Record("billing", "site suspended", req.Domain, "failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	a.Audit.Record("billing", "site suspended", req.Domain, "success")
	c.JSON(http.StatusOK, gin.H{"message": "Site suspended"})
}

// BillingTerminate deletes one site: the registry row synchronously, the
// OS-level artifacts (site, pool file, system user) as a background job.
func (a *API) BillingTerminate(c *gin.Context) {
	var req billingDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.ValidateDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	site, err := a.Store.GetSiteByDomain(req.Domain)
	if err != nil {
		respondError(c, err)
		return
	}
	systemUser := models.DeriveSystemUser(req.Domain)
	if site.TenantID != nil {
		if tenant, terr := a.Store.GetTenant(*site.TenantID); terr == nil {
			systemUser = tenant.SystemUsername
		}
	}
	phpVersion := site.PHPVersion
	if err := a.Store.DeleteSiteByDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	jobID := a.Jobs.Enqueue("billing-terminate", req.Domain, func(ctx context.Context) error {
		return a.Teardown.TeardownSite(ctx, req.Domain, systemUser, phpVersion)
	})
	a.Audit.Record("billing", "site termination queued", req.Domain, "queued")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job_id": jobID})
}

type billingSSORequest struct {
	Domain string `json:"domain" binding:"required"`
}

// BillingSSO mints a one-time WordPress login link for the site's first
// administrator via wp-cli.
func (a *API) BillingSSO(c *gin.Context) {
	var req billingSSORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.ValidateDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	sitePath := "/var/www/" + req.Domain + "/htdocs"
	ctx := c.Request.Context()

	out, err := a.Prov.Runner.Run(ctx, "wp", "user", "list",
		"--role=administrator", "--field=user_login",
		"--path="+sitePath, "--allow-root")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not list administrators: " + err.Error()})
		return
	}
	admins := strings.Fields(out)
	if len(admins) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No administrator account found"})
		return
	}
	link, err := a.Prov.Runner.Run(ctx, "wp", "login", "create", admins[0],
		"--porcelain", "--path="+sitePath, "--allow-root")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not create login link: " + err.Error()})
		return
	}
	a.Audit.Record("billing", "sso link issued", req.Domain, "success")
	c.JSON(http.StatusOK, gin.H{"login_url": strings.TrimSpace(link), "user": admins[0]})
}
