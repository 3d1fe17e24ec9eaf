package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
)

// Handlers groups every HTTP handler mounted by Register.
type Handlers struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Attendance *AttendanceHandler
	Leave      *LeaveHandler
	Grades     *GradeHandler
	Reports    *ReportHandler
	Metrics    *MetricsHandler
}

// RouteDeps carries the middleware dependencies of the protected routes.
type RouteDeps struct {
	Tokens middleware.TokenValidator
	Audit  middleware.AuditRecorder
	Logger *zap.Logger
}

// Register mounts health, readiness and metrics on root and the API under prefix.
func Register(root *gin.Engine, prefix string, h Handlers, deps RouteDeps) {
	root.GET("/health", h.Metrics.Health)
	root.GET("/ready", h.Metrics.Ready)
	root.GET("/metrics", h.Metrics.Prometheus)
	root.GET("/files/:token", h.Users.ServeFile)

	api := root.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))
	mountUserRoutes(secured, h)
	mountAdminRoutes(secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin)), h, deps)
}

func mountUserRoutes(r *gin.RouterGroup, h Handlers) {
	r.POST("/auth/logout", h.Auth.Logout)
	r.GET("/auth/me", h.Auth.Me)
	r.POST("/auth/change-password", h.Auth.ChangePassword)

	r.GET("/profile", h.Users.Profile)
	r.PUT("/profile", h.Users.UpdateProfile)

	r.POST("/attendance/mark", h.Attendance.Mark)
	r.GET("/attendance/me", h.Attendance.ListOwn)

	r.POST("/leave-requests", h.Leave.Create)
	r.GET("/leave-requests/me", h.Leave.ListOwn)
}

func mountAdminRoutes(admin *gin.RouterGroup, h Handlers, deps RouteDeps) {
	admin.GET("/users", h.Users.List)
	admin.PUT("/users/:id/role", h.Users.SetRole)
	admin.DELETE("/users/:id", h.Users.Delete)
	admin.GET("/users/:id/attendance", h.Attendance.ListForUser)

	admin.POST("/attendance", h.Attendance.Add)
	admin.PATCH("/attendance/:id", h.Attendance.EditStatus)

	admin.GET("/leave-requests", h.Leave.List)
	admin.POST("/leave-requests/:id/approve", h.Leave.Approve)
	admin.POST("/leave-requests/:id/reject", h.Leave.Reject)

	admin.GET("/grades", middleware.WithResponseMeta(), h.Grades.List)
	admin.POST("/grades/assign", h.Grades.Assign)
	admin.POST("/grades/default", h.Grades.AssignDefault)
	admin.GET("/grading-policy", h.Grades.Policy)
	admin.PUT("/grading-policy", h.Grades.UpdatePolicy)

	reports := admin.Group("/reports")
	reports.GET("/users/:id", middleware.Audit(deps.Audit, deps.Logger, models.AuditActionReportView, "attendance_report"), h.Reports.UserReport)
	reports.GET("/system", middleware.Audit(deps.Audit, deps.Logger, models.AuditActionReportView, "attendance_report"), h.Reports.SystemReport)
}
