package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kopisegar/api/internal/config"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/handler"
	mw "github.com/kopisegar/api/internal/middleware"
	"github.com/kopisegar/api/internal/service"
	"github.com/kopisegar/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, branch scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, photos handler.PhotoStore) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",        // SvelteKit dev server
			"https://pos.kopisegar.id",     // Production POS
			"https://stg-pos.kopisegar.id", // Staging POS
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Payment gateway webhook (public, gated by signature)
	newPaymentStore := func(db database.DBTX) handler.PaymentStore {
		return database.New(db)
	}
	paymentHandler := handler.NewPaymentHandler(queries, pool, newPaymentStore, hub, cfg.PaymentServerKey)
	r.Post("/payments/notification", paymentHandler.Notification)

	// Clock photo evidence
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/branches/{bid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Branch directory; creation is OWNER-only
		branchHandler := handler.NewBranchHandler(queries)
		r.Get("/branches", branchHandler.List)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("OWNER"))
			r.Post("/branches", branchHandler.Create)
		})

		// Cross-branch reports (OWNER only)
		reportsHandler := handler.NewReportsHandler(queries)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("OWNER"))
			r.Route("/reports", reportsHandler.RegisterOwnerRoutes)
		})

		// Branch-scoped routes
		r.Route("/branches/{bid}", func(r chi.Router) {
			r.Use(mw.RequireBranch)

			r.Get("/", branchHandler.Get)

			// Menu
			menuHandler := handler.NewMenuHandler(queries)
			r.Route("/menu", menuHandler.RegisterRoutes)

			// Vouchers
			voucherHandler := handler.NewVoucherHandler(queries)
			r.Route("/vouchers", voucherHandler.RegisterRoutes)

			// Orders
			newCheckoutStore := func(db database.DBTX) service.CheckoutStore {
				return database.New(db)
			}
			checkoutService := service.NewCheckoutService(pool, newCheckoutStore)
			orderHandler := handler.NewOrderHandler(checkoutService, queries, hub)
			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)

				// Payments (nested under orders)
				r.Route("/{id}/payments", paymentHandler.RegisterRoutes)
			})

			// Attendance
			attendanceHandler := handler.NewAttendanceHandler(queries, photos)
			r.Route("/attendance", attendanceHandler.RegisterRoutes)

			// Sales reports
			r.Route("/reports", reportsHandler.RegisterRoutes)

			// Staff management (managers and up)
			userHandler := handler.NewUserHandler(queries)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("OWNER", "MANAGER"))
				r.Route("/users", userHandler.RegisterRoutes)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
