package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abundantshare/share-backend/api/controllers"
	"github.com/abundantshare/share-backend/api/middleware"
	"github.com/abundantshare/share-backend/internal/admin"
	"github.com/abundantshare/share-backend/internal/auth"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/internal/impact"
	"github.com/abundantshare/share-backend/internal/listings"
	"github.com/abundantshare/share-backend/internal/media"
	"github.com/abundantshare/share-backend/internal/notifications"
	"github.com/abundantshare/share-backend/pkg/auth/session"
	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/abundantshare/share-backend/pkg/logger"
)

// Params carries everything the HTTP surface needs. RateStore, Media and
// Pingers entries may be nil; Gatherer defaults to the global registry.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	Sessions      session.AccessSessionChecker
	RateStore     middleware.RateLimiterStore
	Pingers       map[string]controllers.Pinger
	Gatherer      prometheus.Gatherer
	Auth          auth.Provider
	Listings      listings.Service
	Notifications notifications.Service
	Impact        impact.Service
	Admin         admin.Service
	Media         media.Service
	Bus           events.Bus
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mode := string(listings.ModeLocal)
	if p.Listings != nil {
		mode = string(p.Listings.Mode())
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, mode, p.Pingers, logg))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	authMW := middleware.Auth(cfg.JWT, p.Sessions, middleware.AuthOptions{
		AllowBypass: cfg.App.IsDev() && !cfg.DevAuth.Disabled,
	}, logg)
	roles := profileRoles{provider: p.Auth}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(middleware.SignUpPolicy(cfg.AuthRateLimit), p.RateStore, logg)).
			Post("/sign-up", controllers.AuthSignUp(p.Auth, logg))
		r.With(middleware.RateLimit(middleware.SignInPolicy(cfg.AuthRateLimit), p.RateStore, logg)).
			Post("/sign-in", controllers.AuthSignIn(p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		r.Get("/session", controllers.AuthSession(p.Auth, logg))
		r.With(authMW).Post("/sign-out", controllers.AuthSignOut(p.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Browsing is public; everything else needs a session.
		r.Get("/listings", controllers.ListAvailableListings(p.Listings, logg))

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Use(middleware.ResolveRole(roles, logg))

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", controllers.GetProfile(p.Auth, logg))
				r.Patch("/", controllers.UpdateProfile(p.Auth, logg))
				r.With(middleware.RateLimit(middleware.PhoneCodePolicy(cfg.AuthRateLimit), p.RateStore, logg)).
					Post("/phone/code", controllers.RequestPhoneCode(p.Auth, logg))
				r.Post("/phone/verify", controllers.VerifyPhoneCode(p.Auth, logg))
			})

			r.Post("/listings", controllers.CreateListing(p.Listings, logg))
			r.Get("/listings/mine", controllers.ListMyListings(p.Listings, logg))
			r.Get("/listings/{listingId}", controllers.GetListing(p.Listings, logg))
			r.Patch("/listings/{listingId}", controllers.UpdateListing(p.Listings, logg))
			r.Delete("/listings/{listingId}", controllers.DeleteListing(p.Listings, logg))
			r.Post("/listings/{listingId}/complete", controllers.CompleteListing(p.Listings, logg))

			r.Route("/claims", func(r chi.Router) {
				r.Post("/", controllers.CreateClaim(p.Listings, logg))
				r.Get("/", controllers.ListMyClaims(p.Listings, logg))
				r.Get("/incoming", controllers.ListIncomingClaims(p.Listings, logg))
				r.Get("/{claimId}", controllers.GetClaim(p.Listings, logg))
				r.Patch("/{claimId}/status", controllers.UpdateClaimStatus(p.Listings, logg))
			})

			r.Route("/uploads/images", func(r chi.Router) {
				r.Post("/", controllers.PresignListingImage(p.Media, logg))
				r.Delete("/", controllers.DiscardListingImage(p.Media, logg))
			})

			r.Get("/impact", controllers.GetImpact(p.Impact, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(p.Notifications, logg))
				r.Delete("/", controllers.ClearNotifications(p.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			})

			r.Get("/events", controllers.StreamEvents(p.Bus, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authMW)
		r.Use(middleware.ResolveRole(roles, logg))
		r.Use(middleware.RequireRole(enums.ProfileRoleAdmin, nil, logg))

		r.Get("/overview", controllers.AdminOverview(p.Admin, logg))
		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(p.Admin, logg))
			r.Delete("/{userId}", controllers.AdminDeleteUser(p.Admin, logg))
			r.Patch("/{userId}/role", controllers.AdminSetRole(p.Admin, logg))
		})
		r.Route("/listings", func(r chi.Router) {
			r.Get("/", controllers.AdminListListings(p.Admin, logg))
			r.Post("/bulk-delete", controllers.AdminBulkDeleteListings(p.Admin, logg))
			r.Delete("/{listingId}", controllers.AdminDeleteListing(p.Admin, logg))
		})
		r.Route("/claims", func(r chi.Router) {
			r.Get("/", controllers.AdminListClaims(p.Admin, logg))
			r.Post("/{claimId}/approve", controllers.AdminApproveClaim(p.Admin, logg))
			r.Post("/{claimId}/reject", controllers.AdminRejectClaim(p.Admin, logg))
		})
	})

	return r
}

// profileRoles re-reads the caller's role from their profile.
type profileRoles struct {
	provider auth.Provider
}

func (p profileRoles) RoleOf(r *http.Request) (enums.ProfileRole, error) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	if p.provider == nil {
		return identity.Role, nil
	}
	profile, err := p.provider.GetProfile(r.Context(), identity)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}
