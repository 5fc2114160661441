package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wopanel/vault"
)

func (a *API) ListVaultItems(c *gin.Context) {
	items, err := a.Vault.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (a *API) UploadVaultItem(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if err := a.Vault.Save(header.Filename, file); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(currentUser(c).Username, "vault upload", header.Filename, "success")
	c.JSON(http.StatusCreated, gin.H{"message": "Uploaded", "name": header.Filename})
}

func (a *API) DeleteVaultItem(c *gin.Context) {
	name := c.Param("name")
	if err := a.Vault.Delete(name); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(currentUser(c).Username, "vault delete", name, "success")
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

type registryDownloadRequest struct {
	Slug string `json:"slug" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// DownloadFromRegistry pulls a plugin or theme zip from wordpress.org
// into the vault as a background job.
func (a *API) DownloadFromRegistry(c *gin.Context) {
	var req registryDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != vault.TypePlugin && req.Type != vault.TypeTheme {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type must be plugin or theme"})
		return
	}
	jobID := a.Jobs.Enqueue("registry-download", req.Slug, func(ctx context.Context) error {
		return a.Vault.DownloadFromRegistry(ctx, req.Slug, req.Type)
	})
	a.Audit.Record(currentUser(c).Username, "registry download queued", req.Slug, "queued")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job_id": jobID})
}
