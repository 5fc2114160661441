package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (a *API) ListJobs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	jobs, err := a.Store.ListJobs(limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (a *API) GetJob(c *gin.Context) {
	job, err := a.Store.GetJob(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
