package main

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/handler"
	internalmiddleware "github.com/noah-isme/doc-control-api/internal/middleware"
	"github.com/noah-isme/doc-control-api/internal/models"
)

type routeHandlers struct {
	auth         *handler.AuthHandler
	upload       *handler.UploadHandler
	document     *handler.DocumentHandler
	approval     *handler.ApprovalHandler
	distribution *handler.DistributionHandler
	version      *handler.VersionHandler
	logs         *handler.LogHandler
	files        *handler.FileHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers, tokens internalmiddleware.TokenValidator) {
	api.Use(internalmiddleware.Audit())

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)

	// Signed tokens authorize the local object routes; there is no bearer token.
	if h.files != nil {
		api.PUT("/files/:token", h.files.Upload)
		api.GET("/files/:token", h.files.Download)
	}

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokens))

	secured.POST("/auth/logout", h.auth.Logout)
	secured.POST("/auth/change-password", h.auth.ChangePassword)

	secured.POST("/uploads/init", h.upload.Init)
	secured.POST("/uploads/:uploadId/complete", h.upload.Complete)

	secured.GET("/documents", h.document.List)
	secured.GET("/documents/:id", h.document.Get)

	approvals := secured.Group("/approvals")
	approvals.POST("/submit/:documentId", h.approval.Submit)
	approvals.POST("/approve/:documentId", h.approval.Decide)
	approvals.POST("/revise/:documentId", h.approval.Revise)
	approvals.GET("/progress/:documentId", h.approval.Progress)
	approvals.GET("/history/:documentId", h.approval.History)
	approvals.GET("/todo", h.approval.Todo)
	approvals.POST("/resolve/:documentId", internalmiddleware.RBAC(models.RoleAdmin, models.RoleDocAdmin), h.approval.Resolve)

	distributors := internalmiddleware.RBAC(models.RoleAdmin, models.RoleDocAdmin, models.RoleDistributor)
	distributions := secured.Group("/distributions")
	distributions.POST("/distribute", distributors, h.distribution.Distribute)
	distributions.POST("/recall", distributors, h.distribution.Recall)
	distributions.POST("/obsolete", distributors, h.distribution.Obsolete)
	distributions.POST("/view/:distributionId", h.distribution.View)
	distributions.POST("/download/:distributionId", h.distribution.Download)
	distributions.GET("/inbox", h.distribution.Inbox)
	distributions.GET("/document/:documentId", distributors, h.distribution.ByDocument)
	distributions.GET("/:distributionId/receivers", distributors, h.distribution.Receivers)

	versions := secured.Group("/versions")
	versions.POST("/create/:documentId", h.version.Create)
	versions.POST("/restore/:versionId", internalmiddleware.RBAC(models.RoleAdmin, models.RoleDocAdmin), h.version.Restore)
	versions.GET("/lineage/:documentId", h.version.Lineage)
	versions.GET("/:fileNumber", h.version.List)

	logs := secured.Group("/logs")
	logs.Use(internalmiddleware.RBAC(models.RoleAdmin, models.RoleAuditor))
	logs.GET("", h.logs.List)
	logs.GET("/export", h.logs.Export)
}
