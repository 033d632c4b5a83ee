package router

import (
	"garageBooking/business/admin"
	"garageBooking/domain"
	"garageBooking/internal/middleware"
	"garageBooking/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Guards are the auth middlewares shared by every route group.
type Guards struct {
	AuthRequired echo.MiddlewareFunc
	AuthOptional echo.MiddlewareFunc
}

var (
	customerOnly    = middleware.RequireRoles(domain.RoleCustomer)
	garageOwnerOnly = middleware.RequireRoles(domain.RoleGarageOwner)
	ownerOrAdmin    = middleware.RequireRoles(domain.RoleGarageOwner, domain.RoleAdmin, domain.RoleSuperAdmin)
	adminOnly       = middleware.AdminOnly()
)

func SetupSystemRoutes(e *echo.Echo, health *rest.HealthHandler) {
	e.GET("/health", health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func SetupAuthRoutes(api *echo.Group, handler *rest.AuthHandler, g Guards) {
	auth := api.Group("/auth")

	auth.POST("/register", handler.Register)
	auth.POST("/register-garage", handler.RegisterGarage)
	auth.POST("/login", handler.Login)
	auth.POST("/forgot-password", handler.ForgotPassword)
	auth.POST("/reset-password", handler.ResetPassword)

	auth.POST("/logout", handler.Logout, g.AuthRequired)
	auth.GET("/me", handler.Me, g.AuthRequired)
	auth.PUT("/updatedetails", handler.UpdateDetails, g.AuthRequired)
	auth.PUT("/updatepassword", handler.UpdatePassword, g.AuthRequired)
}

func SetupGarageRoutes(api *echo.Group, handler *rest.GarageHandler, g Guards) {
	garages := api.Group("/garages")

	garages.GET("", handler.List)
	garages.GET("/search/location", handler.SearchLocation)
	garages.GET("/mine", handler.ListMine, g.AuthRequired, garageOwnerOnly)
	garages.GET("/:id", handler.Get, g.AuthOptional)
	garages.POST("", handler.Create, g.AuthRequired, ownerOrAdmin)
	garages.PUT("/:id", handler.Update, g.AuthRequired, ownerOrAdmin)
	garages.DELETE("/:id", handler.SoftDelete, g.AuthRequired, ownerOrAdmin)
	garages.PUT("/:id/restore", handler.Restore, g.AuthRequired, adminOnly)
	garages.DELETE("/:id/hard", handler.HardDelete, g.AuthRequired, adminOnly)

	garages.GET("/:id/services", handler.ListServices, g.AuthOptional)
	garages.POST("/:id/services", handler.AddService, g.AuthRequired, ownerOrAdmin)
	garages.PUT("/:id/services/:serviceId", handler.UpdateService, g.AuthRequired, ownerOrAdmin)
	garages.DELETE("/:id/services/:serviceId", handler.RemoveService, g.AuthRequired, ownerOrAdmin)
}

func SetupBookingRoutes(api *echo.Group, handler *rest.BookingHandler, g Guards) {
	bookings := api.Group("/bookings", g.AuthRequired)

	bookings.POST("", handler.Create, customerOnly)
	bookings.GET("/my-bookings", handler.MyBookings, customerOnly)
	bookings.GET("/garage/:garageId", handler.GarageBookings, ownerOrAdmin)
	bookings.GET("/:id", handler.Get)
	bookings.PUT("/:id", handler.UpdateStatus)
	bookings.PUT("/:id/status", handler.UpdateStatus)

	bookings.DELETE("/:id/soft", handler.SoftDelete, adminOnly)
	bookings.DELETE("/:id/hard", handler.HardDelete, adminOnly)
	bookings.PUT("/:id/restore", handler.Restore, adminOnly)
}

func SetupReviewRoutes(api *echo.Group, handler *rest.ReviewHandler, g Guards) {
	reviews := api.Group("/reviews")

	reviews.GET("/garage/:garageId", handler.ListByGarage)
	reviews.GET("/:id", handler.Get)
	reviews.POST("", handler.Create, g.AuthRequired, customerOnly)
	reviews.PUT("/:id", handler.Update, g.AuthRequired)
	reviews.DELETE("/:id", handler.Delete, g.AuthRequired)
}

func SetupPaymentRoutes(api *echo.Group, handler *rest.PaymentsHandler, g Guards) {
	payments := api.Group("/payments")

	payments.POST("/callback", handler.Callback)

	payments.POST("/initialize", handler.Initiate, g.AuthRequired, garageOwnerOnly)
	payments.GET("/verify/:tx_ref", handler.Verify, g.AuthRequired, garageOwnerOnly)
	payments.GET("/status", handler.Status, g.AuthRequired, garageOwnerOnly)
}

func SetupDocumentRoutes(api *echo.Group, handler *rest.DocumentsHandler, g Guards) {
	documents := api.Group("/documents", g.AuthRequired, garageOwnerOnly)
	documents.POST("", handler.Upload)
	documents.GET("", handler.List)
	documents.GET("/:docId/file", handler.Open)
	documents.DELETE("/:docId", handler.Remove)

	agreements := api.Group("/agreements", g.AuthRequired, garageOwnerOnly)
	agreements.POST("", handler.SignAgreement)
	agreements.GET("", handler.ListAgreements)
}

func SetupAdminRoutes(api *echo.Group, handler *rest.AdminHandler, documents *rest.DocumentsHandler, g Guards) {
	grp := api.Group("/admin", g.AuthRequired, adminOnly)

	apps := grp.Group("/applications")
	apps.GET("", handler.ListApplications)
	apps.GET("/:accountId", handler.GetApplication)
	apps.PUT("/:accountId/start-review", handler.Decide(admin.ActionStartReview))
	apps.PUT("/:accountId/approve", handler.Decide(admin.ActionApprove))
	apps.PUT("/:accountId/reject", handler.Decide(admin.ActionReject))
	apps.PUT("/:accountId/request-info", handler.Decide(admin.ActionRequestInfo))
	apps.PUT("/:accountId/suspend", handler.Decide(admin.ActionSuspend))
	apps.PUT("/:accountId/ban", handler.Decide(admin.ActionBan))
	apps.PUT("/:accountId/waive-payment", handler.Decide(admin.ActionWaivePayment))

	apps.GET("/:accountId/documents/:docId/file", documents.OpenForAdmin)
	apps.PUT("/:accountId/documents/:docId/verify", handler.VerifyDocument)
	apps.PUT("/:accountId/documents/:docId/reject", handler.RejectDocument)

	grp.GET("/stats", handler.Stats)
	grp.GET("/webhooks/unresolved", handler.UnresolvedWebhooks)
	grp.PUT("/webhooks/:id/resolve", handler.ResolveWebhook)

	grp.DELETE("/accounts/:id", handler.ArchiveAccount)
	grp.PUT("/accounts/:id/restore", handler.RestoreAccount)
}
