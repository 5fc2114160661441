// Package controllers exposes the REST surface over the core services.
package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wopanel/audit"
	"wopanel/config"
	"wopanel/jobs"
	"wopanel/models"
	"wopanel/services"
	"wopanel/store"
	"wopanel/vault"
)

// API bundles the collaborators the handlers need. Handlers stay thin:
// validation, dispatch, error mapping.
type API struct {
	Cfg      *config.Config
	Store    *store.Store
	Audit    *audit.Trail
	Jobs     *jobs.Manager
	Tool     *services.SiteTool
	Resolver *services.Resolver
	Prov     *services.Provisioner
	Teardown *services.Teardown
	Nginx    *services.NginxEditor
	System   *services.SystemService
	Vault    *vault.Store
	Log      *zap.SugaredLogger
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, vault.ErrNotFound),
		errors.Is(err, services.ErrConfigNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, vault.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidDomain), errors.Is(err, models.ErrInvalidIdentity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
