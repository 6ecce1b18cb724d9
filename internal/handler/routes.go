package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/arka-edu/timetable-api/internal/middleware"
	"github.com/arka-edu/timetable-api/internal/models"
)

// Handlers bundles everything route registration needs.
type Handlers struct {
	TimeSlots     *TimeSlotHandler
	Rooms         *RoomHandler
	Timetable     *TimetableHandler
	Substitutions *SubstitutionHandler
	Metrics       *MetricsHandler
	Verifier      *middleware.TokenVerifier
}

// Register mounts all API routes under the given prefix. Reads are open to
// any authenticated branch user; writes require scheduling roles.
func Register(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.JWT(h.Verifier))

	schedulers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleScheduler)

	slots := api.Group("/time-slots")
	{
		slots.GET("", h.TimeSlots.List)
		slots.GET("/:id", h.TimeSlots.Get)
		slots.POST("", schedulers, h.TimeSlots.Create)
		slots.DELETE("/:id", schedulers, h.TimeSlots.Delete)
	}

	rooms := api.Group("/rooms")
	{
		rooms.GET("", h.Rooms.List)
		rooms.GET("/:id", h.Rooms.Get)
		rooms.POST("", schedulers, h.Rooms.Create)
	}

	timetable := api.Group("/timetable")
	{
		timetable.GET("/sections/:sectionId/grid", h.Timetable.Grid)
		timetable.POST("/periods", schedulers, h.Timetable.Assign)
		timetable.DELETE("/periods/:id", schedulers, h.Timetable.Deactivate)
	}

	subs := api.Group("/substitutions")
	{
		subs.GET("", h.Substitutions.List)
		subs.GET("/:id", h.Substitutions.Get)
		subs.GET("/eligible/:periodId", h.Substitutions.Eligible)
		subs.POST("", schedulers, h.Substitutions.Request)
		subs.POST("/:id/approve", schedulers, h.Substitutions.Approve)
		subs.POST("/:id/complete", schedulers, h.Substitutions.Complete)
		subs.POST("/:id/cancel", schedulers, h.Substitutions.Cancel)
	}
}
