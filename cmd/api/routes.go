package main

import (
	"log/slog"

	"callflow-platform/internal/auth"
	"callflow-platform/internal/callflow"
	"callflow-platform/internal/httpapi"
	"callflow-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, flow *callflow.Flow, h httpapi.Handlers, authMW gin.HandlerFunc, log *slog.Logger) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Gateway webhooks (public). The gateway cannot send bearer tokens;
	// these endpoints should sit behind provider signature validation in
	// production.
	callflow.NewHandler(flow, log).Register(r)

	// Token issuance is the only unauthenticated operator endpoint.
	r.POST("/v1/auth/login", h.Login)

	// protected operator API
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// CAMPAIGN routes: analysts may read, operators may flip status.
		campaigns := v1.Group("/campaigns")
		campaigns.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleAnalyst))
		{
			campaigns.GET("", h.ListCampaigns)
			campaigns.GET("/:id", h.GetCampaign)
			campaigns.GET("/:id/stats", h.CampaignStats)
			campaigns.GET("/:id/subscriptions", h.ListSubscriptions)
			campaigns.PATCH("/:id/status", rbac.RequireAnyRole(rbac.RoleOperator), h.UpdateCampaignStatus)
		}

		// BLOCKLIST routes: operators manage blocks, only admins may grant
		// rate-limit exemptions.
		blocklist := v1.Group("/blocklist")
		blocklist.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		{
			blocklist.POST("/phones", h.BlockPhone)
			blocklist.DELETE("/phones", h.UnblockPhone)
			blocklist.POST("/ips", h.BlockIP)
			blocklist.DELETE("/ips", h.UnblockIP)
			blocklist.POST("/admins", rbac.RequireAnyRole(rbac.RoleAdmin), h.AddAdminNumber)
		}
	}
}
