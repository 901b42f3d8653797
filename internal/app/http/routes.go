package routes

import (
	"net/http"
	"time"

	accountapi "booking-app/internal/api/account"
	adminapi "booking-app/internal/api/admin"
	agentapi "booking-app/internal/api/agent"
	authapi "booking-app/internal/api/auth"
	bookingsapi "booking-app/internal/api/bookings"
	catalogapi "booking-app/internal/api/catalog"
	storefrontapi "booking-app/internal/api/storefront"
	stripewebhooks "booking-app/internal/api/stripewebhook"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/access"
	"booking-app/internal/domain/users"
	"booking-app/internal/infra/cache"
	"booking-app/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the route tree needs.
type Deps struct {
	DB      *gorm.DB
	Cache   cache.Cache
	Limiter ratelimit.Limiter

	Auth       *authapi.Handler
	Account    *accountapi.Handler
	Catalog    *catalogapi.Handler
	Bookings   *bookingsapi.Handler
	Storefront *storefrontapi.Handler
	Webhook    *stripewebhooks.Handler
	Agent      *agentapi.Handler
	Admin      *adminapi.Handler
}

var (
	authRule       = ratelimit.Rule{Limit: 10, Window: time.Minute}
	storefrontRule = ratelimit.Rule{Limit: 120, Window: time.Minute}
	checkoutRule   = ratelimit.Rule{Limit: 10, Window: time.Minute}
	agentRule      = ratelimit.Rule{Limit: 30, Window: time.Minute}
)

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Raw body is needed for signature verification, so no sanitizer here.
	r.POST("/webhook", d.Webhook.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Agent runtime callbacks carry tool arguments verbatim.
	callback := r.Group("/agent/callback")
	callback.Use(d.Agent.RequireCallbackSecret())
	callback.POST("/tools/:name", d.Agent.InvokeTool)

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	authLimit := middleware.RateLimit(d.Limiter, "auth", authRule, middleware.ByClientIP)
	public.POST("/signup", authLimit, d.Auth.Signup)
	public.POST("/login", authLimit, d.Auth.Login)
	public.POST("/verify-email", d.Auth.VerifyEmail)
	public.POST("/resend-verification", authLimit, d.Auth.ResendVerification)
	public.POST("/request-password-reset", authLimit, d.Auth.RequestPasswordReset)
	public.POST("/reset-password", authLimit, d.Auth.ResetPassword)

	public.GET("/auth/google", d.Auth.GoogleStart)
	public.GET("/auth/google/callback", d.Auth.GoogleCallback)

	// Storefront, authenticated by the tenant's public key.
	store := public.Group("/storefront")
	store.Use(
		middleware.RequirePublicKey(d.DB, d.Cache),
		middleware.RateLimit(d.Limiter, "storefront", storefrontRule, middleware.ByTenantAndIP),
	)
	store.GET("/profile", d.Storefront.Profile)
	store.GET("/catalog", d.Storefront.Catalog)
	store.GET("/services/:id/availability", d.Storefront.Availability)
	store.POST("/checkout",
		middleware.RequireCapability(access.CapCheckout),
		middleware.RateLimit(d.Limiter, "checkout", checkoutRule, middleware.ByTenantAndIP),
		d.Storefront.Checkout,
	)

	// Server-to-server reads for the tenant's own backend.
	server := r.Group("/api/v1")
	server.Use(middleware.RequireSecretKey(d.DB))
	server.GET("/bookings", d.Bookings.List)
	server.GET("/bookings/:id", d.Bookings.Get)
	server.GET("/customers", d.Bookings.Customers)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/me", d.Account.Me)
	auth.POST("/change-password", d.Auth.ChangePassword)

	dash := auth.Group("/dashboard")
	dash.Use(middleware.RequireRole(users.RoleOwner, users.RoleStaff), middleware.LoadTenant(d.DB))
	dash.GET("/profile", d.Account.Profile)
	dash.GET("/payments", d.Account.Payments)
	dash.GET("/users", d.Account.Staff)

	owner := dash.Group("/")
	owner.Use(middleware.RequireRole(users.RoleOwner))
	owner.PUT("/profile", d.Account.UpdateProfile)
	owner.PATCH("/branding", d.Account.UpdateBranding)
	owner.POST("/onboarding/advance", d.Account.AdvanceOnboarding)
	owner.POST("/stripe/connect", d.Account.ConnectStripe)
	owner.GET("/secrets", d.Account.ListSecrets)
	owner.GET("/secrets/:name", d.Account.GetSecret)
	owner.PUT("/secrets/:name", d.Account.PutSecret)
	owner.DELETE("/secrets/:name", d.Account.DeleteSecret)
	owner.POST("/keys/rotate", middleware.RequireCapability(access.CapRotateKeys), d.Account.RotateSecretKey)

	cat := dash.Group("/")
	cat.Use(middleware.RequireCapability(access.CapManageCatalog))
	cat.GET("/segments", d.Catalog.ListSegments)
	cat.POST("/segments", d.Catalog.CreateSegment)
	cat.PUT("/segments/:id", d.Catalog.UpdateSegment)
	cat.DELETE("/segments/:id", d.Catalog.DeleteSegment)
	cat.POST("/tiers", d.Catalog.CreateTier)
	cat.PUT("/tiers/:id", d.Catalog.UpdateTier)
	cat.DELETE("/tiers/:id", d.Catalog.DeleteTier)
	cat.GET("/services", d.Catalog.ListServices)
	cat.POST("/services", d.Catalog.CreateService)
	cat.PUT("/services/:id", d.Catalog.UpdateService)
	cat.DELETE("/services/:id", d.Catalog.DeactivateService)
	cat.GET("/availability", d.Catalog.ListAvailability)
	cat.PUT("/availability", d.Catalog.ReplaceAvailability)
	cat.POST("/blackouts", d.Catalog.AddBlackout)
	cat.DELETE("/blackouts/:id", d.Catalog.DeleteBlackout)

	bk := dash.Group("/")
	bk.Use(middleware.RequireCapability(access.CapManageBookings))
	bk.GET("/bookings", d.Bookings.List)
	bk.GET("/bookings/export", d.Bookings.Export)
	bk.GET("/bookings/:id", d.Bookings.Get)
	bk.POST("/bookings", d.Bookings.Create)
	bk.POST("/bookings/:id/cancel", d.Bookings.Cancel)
	bk.POST("/bookings/:id/confirm", d.Bookings.Confirm)
	bk.GET("/customers", d.Bookings.Customers)

	ag := dash.Group("/agent")
	ag.Use(
		middleware.RequireCapability(access.CapAgent),
		middleware.RateLimit(d.Limiter, "agent", agentRule, middleware.ByTenantAndIP),
	)
	ag.GET("/tools", d.Agent.ListTools)
	ag.POST("/sessions", d.Agent.StartSession)
	ag.POST("/sessions/:id/messages", d.Agent.SendMessage)
	ag.GET("/proposals", d.Agent.ListProposals)
	ag.POST("/proposals/:id/confirm", middleware.RequireRole(users.RoleOwner), d.Agent.ConfirmProposal)
	ag.POST("/proposals/:id/reject", middleware.RequireRole(users.RoleOwner), d.Agent.RejectProposal)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireRole(users.RolePlatformAdmin))
	admin.GET("/tenants", d.Admin.ListTenants)
	admin.PATCH("/tenants/:id/status", d.Admin.SetStatus)
	admin.PATCH("/tenants/:id/commission", d.Admin.SetCommission)
	admin.GET("/payments", d.Admin.ListPayments)
	admin.GET("/stats", d.Admin.Stats)
}
