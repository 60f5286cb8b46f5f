package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/service"
)

// Handlers groups every HTTP handler mounted by Register.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Registry      *RegistryHandler
	HealthCenters *HealthCenterHandler
	Campaigns     *CampaignHandler
	Registrations *RegistrationHandler
	StatsReports  *StatsReportHandler
	Consolidation *ConsolidationHandler
	Reports       *ReportHandler
	Notifications *NotificationHandler
	Metrics       *MetricsHandler
}

// RouteConfig carries the cross-cutting collaborators of the route table.
type RouteConfig struct {
	// Authenticate validates the bearer token and stores claims on the context.
	Authenticate gin.HandlerFunc
	Policy       service.Policy
	Audit        middleware.AuditWriter
}

// Register mounts the API under group.
func Register(group *gin.RouterGroup, h Handlers, cfg RouteConfig) {
	allow := func(op service.Operation) gin.HandlerFunc {
		return middleware.RequirePermission(cfg.Policy, op)
	}

	auth := group.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/bootstrap", h.Auth.Bootstrap)
	auth.POST("/register", h.Registrations.Register)

	if h.Reports != nil {
		// Download tokens are signed, the link is the credential.
		group.GET("/export/:token", h.Reports.DownloadReport)
	}

	secured := group.Group("")
	secured.Use(cfg.Authenticate)

	secured.GET("/auth/me", h.Auth.Me)
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)

	users := secured.Group("/users")
	users.GET("", allow(service.OpUsersManage), h.Users.List)
	users.GET("/:id", middleware.RequirePermissionOrSelf(cfg.Policy, service.OpUsersManage), h.Users.Get)
	users.POST("", allow(service.OpUsersManage), middleware.Audit(cfg.Audit, "USER_CREATE", "user"), h.Users.Create)
	users.PUT("/:id", allow(service.OpUsersManage), h.Users.Update)
	users.DELETE("/:id", allow(service.OpUsersManage), h.Users.Delete)
	users.GET("/registrations", allow(service.OpUsersManage), h.Registrations.ListPending)
	users.POST("/registrations/:id/approve", allow(service.OpUsersManage), h.Registrations.Approve)
	users.POST("/registrations/:id/reject", allow(service.OpUsersManage), h.Registrations.Reject)

	centers := secured.Group("/health-centers")
	centers.GET("", h.HealthCenters.List)
	centers.GET("/:id", h.HealthCenters.Get)
	centers.POST("", allow(service.OpCentersManage), h.HealthCenters.Create)
	centers.PUT("/:id", allow(service.OpCentersManage), h.HealthCenters.Update)

	campaigns := secured.Group("/campaigns", allow(service.OpCampaignsRead))
	campaigns.GET("", h.Campaigns.List)
	campaigns.GET("/stats", h.Campaigns.Stats)
	campaigns.GET("/:id", h.Campaigns.Get)
	campaigns.POST("", allow(service.OpCampaignsManage), h.Campaigns.Create)
	campaigns.PATCH("/:id/status", allow(service.OpCampaignsManage), h.Campaigns.UpdateStatus)
	campaigns.DELETE("/:id", allow(service.OpCampaignsDelete), h.Campaigns.Delete)
	campaigns.GET("/:id/activities", h.Campaigns.ListActivities)
	campaigns.POST("/:id/activities", allow(service.OpCampaignsManage), h.Campaigns.AddActivity)
	secured.GET("/activities/stats", allow(service.OpCampaignsRead), h.Campaigns.ActivityStats)

	statsGroup := secured.Group("/stats", allow(service.OpStatsRead))
	statsGroup.GET("/registry", h.Registry.Registry)
	statsGroup.GET("/categories", h.Registry.ListCategories)
	statsGroup.POST("/categories", allow(service.OpRegistryManage), h.Registry.CreateCategory)
	statsGroup.PUT("/categories/:id", allow(service.OpRegistryManage), h.Registry.UpdateCategory)
	statsGroup.DELETE("/categories/:id", allow(service.OpRegistryManage), h.Registry.DeleteCategory)
	statsGroup.GET("/topics", h.Registry.ListTopics)
	statsGroup.POST("/topics", allow(service.OpRegistryManage), h.Registry.CreateTopic)
	statsGroup.PUT("/topics/:id", allow(service.OpRegistryManage), h.Registry.UpdateTopic)
	statsGroup.DELETE("/topics/:id", allow(service.OpRegistryManage), h.Registry.DeleteTopic)

	statsGroup.GET("/reports", h.StatsReports.List)
	statsGroup.PUT("/reports", allow(service.OpStatsSubmit), h.StatsReports.Save)
	statsGroup.GET("/reports/:id", h.StatsReports.Get)
	statsGroup.POST("/reports/:id/submit", allow(service.OpStatsSubmit), h.StatsReports.Submit)
	statsGroup.POST("/reports/:id/review", allow(service.OpStatsReview), h.StatsReports.Review)
	statsGroup.DELETE("/reports/:id", allow(service.OpStatsDelete), middleware.Audit(cfg.Audit, "STATS_DELETE_REQUEST", "stats_report"), h.StatsReports.Delete)

	statsGroup.GET("/consolidated", h.Consolidation.Consolidated)
	statsGroup.GET("/coverage", allow(service.OpStatsConsolidate), h.Consolidation.Coverage)

	if h.Reports != nil {
		statsGroup.POST("/exports", allow(service.OpStatsExport), h.Reports.GenerateReport)
		statsGroup.GET("/exports/:id", allow(service.OpStatsExport), h.Reports.ReportStatus)
	}

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)
	notifications.POST("/:id/read", h.Notifications.MarkRead)

	secured.GET("/metrics/summary", allow(service.OpStatsConsolidate), h.Metrics.Summary)
}
