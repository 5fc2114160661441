package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wopanel/models"
)

func (a *API) ListTenants(c *gin.Context) {
	tenants, err := a.Store.ListTenants()
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, gin.H{
			"id":              t.ID,
			"system_username": t.SystemUsername,
			"email":           t.Email,
			"status":          t.Status,
			"site_count":      len(t.Sites),
			"created_at":      t.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) GetTenant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant id"})
		return
	}
	tenant, err := a.Store.GetTenant(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	sites, err := a.Store.TenantSites(tenant.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenant, "sites": sites})
}

type tenantStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (a *API) UpdateTenantStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant id"})
		return
	}
	var req tenantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != models.TenantActive && req.Status != models.TenantSuspended {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	tenant, err := a.Store.UpdateTenantStatus(uint(id), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(currentUser(c).Username, "tenant status updated", tenant.SystemUsername, req.Status)
	c.JSON(http.StatusOK, tenant)
}

// DeleteTenant removes the tenant's registry rows immediately, then
// queues the OS-level teardown of every owned site and the system user.
func (a *API) DeleteTenant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant id"})
		return
	}
	tenant, err := a.Store.GetTenant(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	sites, err := a.Store.TenantSites(tenant.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	domains := make([]string, 0, len(sites))
	for _, s := range sites {
		domains = append(domains, s.Domain)
	}
	// The registry rows go synchronously; the OS cleanup follows as a job.
	// A suspended-in-flight teardown must never resurrect the tenant in
	// listings.
	if err := a.Store.DeleteTenant(tenant.ID); err != nil {
		respondError(c, err)
		return
	}
	actor := currentUser(c).Username
	jobID := a.Jobs.Enqueue("tenant-teardown", tenant.SystemUsername, func(ctx context.Context) error {
		return a.Teardown.TeardownTenant(ctx, tenant.SystemUsername, domains)
	})
	a.Audit.Record(actor, "tenant teardown queued", tenant.SystemUsername, "queued")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job_id": jobID})
}
