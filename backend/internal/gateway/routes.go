package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"classrecord/backend/internal/gateway/handlers"
	"classrecord/backend/internal/gateway/util"
	"classrecord/backend/internal/record"
	"classrecord/backend/internal/shared"
)

// RequestTimeout bounds every non-streaming request.
const RequestTimeout = 60 * time.Second

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Records    *record.Service
	Logger     *zap.Logger
	CORS       shared.CORSConfig
	PrefillTTL time.Duration
}

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	// CORS Configuration (Allow React Frontend)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORS.AllowedOrigins,
		AllowedMethods:   deps.CORS.AllowedMethods,
		AllowedHeaders:   deps.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: deps.CORS.AllowCredentials,
		MaxAge:           deps.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	validate := validator.New()
	lookupHandler := &handlers.LookupHandler{Service: deps.Records, Validate: validate, PrefillTTL: deps.PrefillTTL}
	recordHandler := &handlers.RecordHandler{Service: deps.Records, Validate: validate, Logger: deps.Logger}

	r.Get("/healthz", Healthz(deps.Records))

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// Live table feeds stay open for as long as the view does
		r.Get("/records/{template}/stream", recordHandler.StreamRecords)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(RequestTimeout))

			// --- Student lookup ---
			r.Get("/templates", lookupHandler.ListTemplates)
			r.Post("/lookup", lookupHandler.Lookup)
			r.Get("/lookup/prefill", lookupHandler.Prefill)
			r.Get("/session/record", lookupHandler.GetSessionRecord)
			r.Delete("/session", lookupHandler.EndSession)

			// --- Class record management ---
			r.Get("/records/{template}", recordHandler.ListRecords)
			r.Post("/records/{template}/upload", recordHandler.UploadRecords)
			r.Get("/records/{template}/export", recordHandler.ExportRecords)
			r.Patch("/records/{template}/{id}", recordHandler.UpdateRecord)
			r.Delete("/records/{template}/{id}", recordHandler.DeleteRecord)
		})
	})

	return r
}

// Healthz reports whether the record store answers a ping.
func Healthz(records *record.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := records.Ping(ctx); err != nil {
			util.HandleError(w, err)
			return
		}
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"status":  "SERVING",
		})
	}
}
