package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"wopanel/models"
)

// logFiles is the whitelist for tail and streaming endpoints. Arbitrary
// paths are never accepted from clients.
var logFiles = map[string]string{
	"nginx-access": "/var/log/nginx/access.log",
	"nginx-error":  "/var/log/nginx/error.log",
	"syslog":       "/var/log/syslog",
}

func (a *API) SystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.System.Stats())
}

func (a *API) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, a.System.ListServices(c.Request.Context()))
}

type serviceActionRequest struct {
	Action string `json:"action" binding:"required"`
}

func (a *API) ManageService(c *gin.Context) {
	service := c.Param("name")
	var req serviceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.System.ManageService(c.Request.Context(), service, req.Action); err != nil {
		a.Audit.Record(currentUser(c).Username, "service "+req.Action, service, "failure")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.Audit.Record(currentUser(c).Username, "service "+req.Action, service, "success")
	c.JSON(http.StatusOK, gin.H{"message": "Service " + req.Action + " completed"})
}

func (a *API) ListPHPExtensions(c *gin.Context) {
	c.JSON(http.StatusOK, a.System.PHPExtensions(c.Param("version")))
}

type extensionActionRequest struct {
	Extension string `json:"extension" binding:"required"`
	Action    string `json:"action" binding:"required"`
}

func (a *API) ManagePHPExtension(c *gin.Context) {
	version := c.Param("version")
	var req extensionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.System.ManagePHPExtension(c.Request.Context(), version, req.Extension, req.Action); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.Audit.Record(currentUser(c).Username, "php extension "+req.Action, req.Extension, "success")
	c.JSON(http.StatusOK, gin.H{"message": "Extension updated"})
}

func (a *API) TailLog(c *gin.Context) {
	path, ok := logFiles[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown log"})
		return
	}
	lines, err := a.System.TailLog(c.Request.Context(), path, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

// StreamLog follows a whitelisted log over SSE. The tail subprocess dies
// with the request context, so a client disconnect stops it promptly.
func (a *API) StreamLog(c *gin.Context) {
	path, ok := logFiles[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown log"})
		return
	}
	lines, err := a.System.FollowLog(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		line, ok := <-lines
		if !ok {
			return false
		}
		c.SSEvent("message", line)
		return true
	})
}

// SiteLog tails the per-domain nginx access or error log.
func (a *API) SiteLog(c *gin.Context) {
	domain := c.Param("domain")
	if err := models.ValidateDomain(domain); err != nil {
		respondError(c, err)
		return
	}
	kind := c.Param("kind")
	if kind != "access" && kind != "error" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown log"})
		return
	}
	path := "/var/log/nginx/" + domain + "." + kind + ".log"
	lines, err := a.System.TailLog(c.Request.Context(), path, 200)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (a *API) ListActivities(c *gin.Context) {
	c.JSON(http.StatusOK, a.Audit.Recent())
}
