package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/api/middleware"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/handlers"
)

// maxBodyBytes caps request bodies. Webhook batches from Meta stay well
// below this.
const maxBodyBytes = 64 * 1024

// Options configure the router.
type Options struct {
	Logger  zerolog.Logger
	Handler *handlers.Handler
	Auth    *middleware.AuthMiddleware

	// Redis enables rate limiting when set.
	Redis     *redis.Client
	RateLimit middleware.RateLimiterConfig

	CORSOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(opts Options) *chi.Mux {
	r := chi.NewRouter()
	h := opts.Handler
	auth := opts.Auth

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(chimw.Recoverer)

	if opts.Redis != nil {
		rlCfg := opts.RateLimit
		if rlCfg.Auth == nil {
			rlCfg.Auth = opts.Auth
		}
		limiter := middleware.NewRateLimiter(opts.Redis, opts.Logger, rlCfg)
		r.Use(limiter.Middleware)
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Hub-Signature-256"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)
	r.Get("/api", h.Root)
	r.Get("/whatsapp-webhook", h.VerifyWebhook)
	r.Post("/whatsapp-webhook", h.ReceiveWebhook)

	// Authenticated routes (Supabase bearer token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/send-whatsapp-message", h.SendWhatsAppMessage)
		r.Post("/send-whatsapp-template", h.SendWhatsAppTemplate)
		r.Get("/templates", h.ListTemplates)
		r.Post("/templates", h.CreateTemplate)

		r.Get("/whatsapp-config", h.GetWhatsAppConfig)
		r.Post("/whatsapp-config", h.SaveWhatsAppConfig)
		r.Post("/whatsapp-config/test", h.TestWhatsAppConfig)
		r.With(auth.RequireServiceRole).Post("/whatsapp-config/cleanup", h.CleanupWhatsAppConfig)

		r.Post("/create-conversation", h.CreateConversation)
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{id}/messages", h.GetConversationMessages)
		r.Post("/conversations/{id}/read", h.MarkConversationRead)

		r.Get("/properties", h.ListProperties)
		r.Post("/properties", h.CreateProperty)
		r.Get("/properties/{id}", h.GetProperty)

		r.Post("/generate-ai-response", h.GenerateAIResponse)
		r.Post("/analyze-message", h.AnalyzeMessage)
		r.Post("/emergency-notification", h.EmergencyNotification)
		r.Post("/detect-emergency", h.DetectEmergency)

		r.Post("/fcm-proxy", h.FCMProxy)
		r.Post("/push-subscriptions", h.RegisterPushSubscription)

		r.Get("/stats", h.Stats)
		r.Get("/messages/search", h.Search)
		r.Get("/ws", h.Realtime)
	})

	return r
}
