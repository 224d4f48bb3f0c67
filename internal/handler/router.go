package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusrec/records-api/internal/middleware"
	"github.com/campusrec/records-api/internal/models"
	"github.com/campusrec/records-api/internal/service"
)

// Handlers bundles every HTTP handler of the API.
type Handlers struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Subjects  *SubjectHandler
	Tests     *TestHandler
	Dashboard *DashboardHandler
}

const (
	roleAdmin   = string(models.RoleAdmin)
	roleTeacher = string(models.RoleTeacher)
)

// RegisterRoutes mounts every API route under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, metrics *service.MetricsService) {
	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	// Public.
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	protected.POST("/auth/logout", h.Auth.Logout)
	protected.GET("/auth/me", h.Auth.Me)
	protected.PUT("/auth/password", h.Auth.ChangePassword)

	users := protected.Group("/users")
	{
		users.GET("", middleware.RBAC(roleAdmin, roleTeacher), h.Users.List)
		users.GET("/:id", middleware.RBAC(roleAdmin, roleTeacher, middleware.Self), h.Users.Get)
		users.POST("", middleware.RBAC(roleAdmin), h.Users.Create)
		users.PUT("/:id", middleware.RBAC(roleAdmin), h.Users.Update)
		users.DELETE("/:id", middleware.RBAC(roleAdmin), h.Users.Deactivate)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", h.Subjects.List)
		subjects.GET("/:id", h.Subjects.Get)
		subjects.POST("", middleware.RBAC(roleAdmin), h.Subjects.Create)
		subjects.PUT("/:id", middleware.RBAC(roleAdmin), h.Subjects.Update)
		subjects.DELETE("/:id", middleware.RBAC(roleAdmin), h.Subjects.Deactivate)
		subjects.POST("/reconcile", middleware.RBAC(roleAdmin), h.Subjects.Reconcile)
	}

	tests := protected.Group("/tests")
	{
		tests.GET("", h.Tests.List)
		tests.GET("/:id", h.Tests.Get)
		tests.POST("", middleware.RBAC(roleAdmin, roleTeacher), h.Tests.Create)
		tests.PUT("/:id", middleware.RBAC(roleAdmin, roleTeacher), h.Tests.Update)
		tests.DELETE("/:id", middleware.RBAC(roleAdmin, roleTeacher), h.Tests.Delete)
		tests.POST("/:id/marks", middleware.RBAC(roleAdmin, roleTeacher), h.Tests.SubmitMarks)
		tests.GET("/:id/results", middleware.RBAC(roleAdmin, roleTeacher), h.Tests.Results)
		tests.GET("/:id/results/export", middleware.RBAC(roleAdmin, roleTeacher), h.Tests.Export)
	}

	protected.GET("/students/:id/results", middleware.RBAC(roleAdmin, roleTeacher, middleware.Self), h.Dashboard.StudentResults)

	dashboard := protected.Group("/dashboard")
	{
		dashboard.GET("/student/:id", middleware.RBAC(roleAdmin, roleTeacher, middleware.Self), h.Dashboard.Student)
		dashboard.GET("/class", middleware.RBAC(roleAdmin, roleTeacher), h.Dashboard.Class)
		dashboard.GET("/admin", middleware.RBAC(roleAdmin), h.Dashboard.Admin)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
