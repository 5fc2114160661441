package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wopanel/controllers"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wopanel_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wopanel_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func SetupRoutes(router *gin.Engine, api *controllers.API) {
	router.Use(metricsMiddleware())
	router.Use(api.AuditMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "wopanel", "status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	router.POST("/api/login", api.Login)
	router.POST("/api/logout", api.Logout)
	router.POST("/api/v1/auth/password-reset/request", api.RequestPasswordReset)
	router.POST("/api/v1/auth/password-reset/verify", api.VerifyResetToken)
	router.POST("/api/v1/auth/password-reset/confirm", api.ResetPassword)

	// Billing-system callbacks, authenticated by shared key.
	billing := router.Group("/api/v1/billing")
	billing.Use(api.BillingAuth())
	{
		billing.POST("/create", api.BillingCreate)
		billing.POST("/suspend", api.BillingSuspend)
		billing.POST("/terminate", api.BillingTerminate)
		billing.POST("/sso", api.BillingSSO)
	}

	// Authenticated routes
	auth := router.Group("/api/v1")
	auth.Use(api.AuthMiddleware())
	{
		auth.GET("/me", api.Me)
		auth.PUT("/settings", api.UpdateSettings)
		auth.POST("/mfa/setup", api.MFASetup)
		auth.POST("/mfa/verify", api.MFAVerify)
		auth.POST("/mfa/disable", api.MFADisable)

		auth.GET("/sites", api.ListSites)
		auth.GET("/sites/:domain", api.GetSite)
		auth.GET("/sites/:domain/nginx-config", api.GetSiteNginxConfig)
		auth.GET("/sites/:domain/logs/:kind", api.SiteLog)

		auth.GET("/tenants", api.ListTenants)
		auth.GET("/tenants/:id", api.GetTenant)

		auth.GET("/system/stats", api.SystemStats)
		auth.GET("/system/services", api.ListServices)
		auth.GET("/system/php/:version/extensions", api.ListPHPExtensions)
		auth.GET("/logs/:name", api.TailLog)
		auth.GET("/logs/:name/stream", api.StreamLog)
		auth.GET("/activities", api.ListActivities)

		auth.GET("/vault", api.ListVaultItems)
		auth.GET("/jobs", api.ListJobs)
		auth.GET("/jobs/:id", api.GetJob)

		// Mutations require the administrator role.
		admin := auth.Group("")
		admin.Use(api.AdminRequired())
		{
			admin.POST("/sites", api.CreateSite)
			admin.POST("/sites/bulk", api.BulkDeploy)
			admin.DELETE("/sites/:domain", api.DeleteSite)
			admin.PUT("/sites/:domain/ssl", api.UpdateSiteSSL)
			admin.PUT("/sites/:domain/php", api.UpdateSitePHP)
			admin.POST("/sites/:domain/cache/clear", api.ClearSiteCache)
			admin.PUT("/sites/:domain/nginx-config", api.SaveSiteNginxConfig)

			admin.PUT("/tenants/:id/status", api.UpdateTenantStatus)
			admin.DELETE("/tenants/:id", api.DeleteTenant)

			admin.GET("/users", api.ListUsers)
			admin.POST("/users", api.CreateUser)
			admin.PUT("/users/:id/role", api.UpdateUserRole)
			admin.DELETE("/users/:id", api.DeleteUser)

			admin.POST("/system/services/:name", api.ManageService)
			admin.POST("/system/php/:version/extensions", api.ManagePHPExtension)

			admin.POST("/vault", api.UploadVaultItem)
			admin.DELETE("/vault/:name", api.DeleteVaultItem)
			admin.POST("/vault/registry", api.DownloadFromRegistry)
		}
	}
}
