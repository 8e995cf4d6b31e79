package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/curriculum-api/internal/handler"
	"github.com/noah-isme/curriculum-api/internal/lifecycle"
	"github.com/noah-isme/curriculum-api/internal/middleware"
	"github.com/noah-isme/curriculum-api/pkg/config"
)

type routeHandlers struct {
	identity   middleware.TokenValidator
	frameworks *handler.FrameworkHandler
	versions   *handler.VersionHandler
	approvals  *handler.ApprovalHandler
	structure  *handler.StructureHandler
	mappings   *handler.MappingHandler
	metrics    *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.Identity(h.identity), middleware.WithResponseMeta())

	allow := func(action lifecycle.Action) gin.HandlerFunc {
		return middleware.RequireAction(lifecycle.DefaultPolicy, action)
	}
	read := allow(lifecycle.ActionRead)

	api.GET("/frameworks", read, h.frameworks.List)
	api.POST("/frameworks", allow(lifecycle.ActionFrameworkCreate), h.frameworks.Create)
	api.GET("/frameworks/:id", read, h.frameworks.Get)
	api.GET("/frameworks/:id/versions", read, h.frameworks.ListVersions)
	api.POST("/frameworks/:id/versions", allow(lifecycle.ActionVersionCreate), h.frameworks.CreateVersion)
	api.GET("/frameworks/:id/stats", read, h.frameworks.Stats)

	api.GET("/versions/:id", read, h.versions.Get)
	api.PATCH("/versions/:id", allow(lifecycle.ActionVersionUpdate), h.versions.Update)
	api.DELETE("/versions/:id", allow(lifecycle.ActionVersionDelete), h.versions.Delete)

	api.POST("/versions/:id/approvals", allow(lifecycle.ActionApprovalRequest), h.approvals.Request)
	api.GET("/approvals", read, h.approvals.List)
	api.GET("/approvals/:id", read, h.approvals.Get)
	api.PATCH("/approvals/:id", allow(lifecycle.ActionApprovalDecide), h.approvals.Decide)
	api.GET("/reviewers", allow(lifecycle.ActionApprovalRequest), h.approvals.Reviewers)

	edit := allow(lifecycle.ActionStructureEdit)
	api.GET("/versions/:id/courses", read, h.structure.ListCourses)
	api.POST("/versions/:id/courses", edit, h.structure.CreateCourse)
	api.PUT("/versions/:id/courses/order", edit, h.structure.ReorderCourses)
	api.PATCH("/courses/:id", edit, h.structure.UpdateCourse)
	api.DELETE("/courses/:id", edit, h.structure.DeleteCourse)
	api.GET("/courses/:id/units", read, h.structure.ListUnits)
	api.POST("/courses/:id/units", edit, h.structure.CreateUnit)
	api.PUT("/courses/:id/units/order", edit, h.structure.ReorderUnits)
	api.PATCH("/units/:id", edit, h.structure.UpdateUnit)
	api.DELETE("/units/:id", edit, h.structure.DeleteUnit)
	api.POST("/units/:id/split", edit, h.structure.SplitUnit)
	api.GET("/units/:id/resources", read, h.structure.ListResources)
	api.POST("/units/:id/resources", edit, h.structure.CreateResource)
	api.PATCH("/resources/:id", edit, h.structure.UpdateResource)
	api.DELETE("/resources/:id", edit, h.structure.DeleteResource)

	api.GET("/mappings", read, h.mappings.List)
	api.POST("/mappings", allow(lifecycle.ActionMappingCreate), h.mappings.Create)
	api.GET("/mappings/:id", read, h.mappings.Get)
	api.PATCH("/mappings/:id", allow(lifecycle.ActionMappingUpdate), h.mappings.Update)
	api.DELETE("/mappings/:id", allow(lifecycle.ActionMappingDelete), h.mappings.Delete)
}
