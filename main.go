package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"disaster-coordination/cache"
	"disaster-coordination/config"
	"disaster-coordination/database"
	"disaster-coordination/geocode"
	"disaster-coordination/handlers"
	"disaster-coordination/llm"
	"disaster-coordination/metrics"
	"disaster-coordination/middleware"
	"disaster-coordination/service"
	"disaster-coordination/social"
	ws "disaster-coordination/websocket"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Set log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	// Connect to the database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Fatal("Failed to initialize database schema:", err)
	}

	// Shared TTL cache for geocoding, social and verification results
	appCache := cache.New(cfg.CacheDefaultTTL)

	// Build the geocoding rotation. Nominatim needs no credential and is
	// always present; the others join only when their key is configured.
	providers := []geocode.Provider{
		geocode.NewNominatimProvider(cfg.NominatimBaseURL, cfg.NominatimEmail, cfg.GeocodeTimeout, cfg.ProviderRetryMax),
	}
	if cfg.LocationIQKey != "" {
		providers = append(providers, geocode.NewLocationIQProvider(cfg.LocationIQKey, cfg.GeocodeTimeout, cfg.ProviderRetryMax))
	}
	if cfg.MapTilerKey != "" {
		providers = append(providers, geocode.NewMapTilerProvider(cfg.MapTilerKey, cfg.GeocodeTimeout, cfg.ProviderRetryMax))
	}
	resolver := geocode.NewResolver(providers, appCache, cfg.GeocodeTimeout)
	log.Printf("Geocoding rotation: %v", resolver.Providers())

	// Optional LLM client for location extraction and image verification
	var llmClient llm.Client
	if cfg.OpenAIAPIKey != "" {
		llmClient = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		log.Println("OPENAI_API_KEY not set, LLM enrichment disabled")
	}

	// Optional social media search
	var searchClient social.SearchClient
	if cfg.SocialSearchURL != "" {
		searchClient = social.NewHTTPClient(cfg.SocialSearchURL, cfg.SocialSearchToken)
	}
	socialService := social.NewService(searchClient, appCache, cfg.SocialCacheTTL)

	// WebSocket hub for live entity change events
	hub := ws.NewHub()
	go hub.Run()

	svc := service.New(db, resolver, llmClient, socialService, hub, appCache, cfg.DefaultRadiusMeters)
	h := handlers.NewHandlers(svc, resolver, llmClient, hub)

	router := setupRouter(cfg, h)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func setupRouter(cfg *config.Config, h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	// Add gzip compression middleware
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	manage := middleware.RequireRole(middleware.RoleCoordinator, middleware.RoleAdmin)

	api := router.Group("/api/v3")
	{
		// Geocoding
		api.GET("/geocode/location", h.GeocodeLocation)
		api.POST("/geocode/extract-location", h.ExtractLocation)
		api.GET("/geocode/nearby-disasters", h.NearbyDisasters)

		// Disasters
		api.POST("/disasters", auth, h.CreateDisaster)
		api.GET("/disasters", h.ListDisasters)
		api.GET("/disasters/:id", h.GetDisaster)
		api.PUT("/disasters/:id", auth, h.UpdateDisaster)
		api.DELETE("/disasters/:id", auth, manage, h.DeleteDisaster)
		api.GET("/disasters/:id/social-media", h.SocialMedia)
		api.GET("/disasters/:id/updates", h.RecentUpdates)

		// Reports
		api.POST("/disasters/:id/reports", auth, h.SubmitReport)
		api.GET("/disasters/:id/reports", h.ListReports)
		api.POST("/reports/:id/verify", auth, manage, h.VerifyReport)

		// Resources
		api.POST("/resources", auth, manage, h.CreateResource)
		api.GET("/resources", h.ListResources)
		api.GET("/resources/nearby", h.NearbyResources)
		api.GET("/resources/near-disaster/:disasterId", h.ResourcesNearDisaster)
		api.GET("/resources/by-id/:id", h.GetResource)
		api.PUT("/resources/by-id/:id", auth, manage, h.UpdateResource)
		api.DELETE("/resources/by-id/:id", auth, manage, h.DeleteResource)

		// Map export
		api.GET("/export/disasters.geojson", h.ExportDisastersGeoJSON)

		// WebSocket live updates
		api.GET("/ws/listen", h.Listen)
		api.GET("/ws/health", h.WebSocketHealth)
	}

	return router
}
