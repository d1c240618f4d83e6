package main

import (
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"harbor-server/internal/auth"
	"harbor-server/internal/channel"
	"harbor-server/internal/config"
	"harbor-server/internal/db"
	"harbor-server/internal/handlers"
	"harbor-server/internal/logger"
	"harbor-server/internal/metrics"
	"harbor-server/internal/middleware"
	"harbor-server/internal/realtime"
	"harbor-server/internal/user"
)

var (
	NoCache    = middleware.CacheControl(0, "no-cache")
	Cache30Sec = middleware.CacheControl(30*time.Second, "private")
	Cache2Min  = middleware.CacheControl(2*time.Minute, "private")
	Cache5Min  = middleware.CacheControl(5*time.Minute, "private")
	Cache1Hour = middleware.CacheControl(1*time.Hour, "public")
)

func publicRoute(mux *http.ServeMux, path string, rateLimit *middleware.RateLimitStore, cacheMiddleware func(http.HandlerFunc) http.HandlerFunc, handler http.HandlerFunc) {
	mux.HandleFunc(path, middleware.RateLimitFunc(rateLimit, false)(cacheMiddleware(middleware.TrackOutboundData(handler))))
}

func authRoute(mux *http.ServeMux, path string, rateLimit *middleware.RateLimitStore, cacheMiddleware func(http.HandlerFunc) http.HandlerFunc, handler http.HandlerFunc) {
	mux.HandleFunc(path, middleware.RateLimitFunc(rateLimit, true)(cacheMiddleware(middleware.RequireAuth(middleware.TrackOutboundData(handler)))))
}

func main() {
	godotenv.Load()
	defer logger.Sync()

	config.LoadConfig("config.yaml")

	if err := db.Init(config.Conf.DatabasePath); err != nil {
		logger.Fatalf("database init failed: %v", err)
	}

	if err := db.DB.AutoMigrate(
		&user.User{},
		&auth.Session{},
		&channel.Channel{},
		&channel.Member{},
		&channel.Message{},
		&metrics.Snapshot{},
		&metrics.Hourly{},
	); err != nil {
		logger.Fatalf("database migration failed: %v", err)
	}

	go realtime.GlobalHub.Run()

	metricsService := metrics.NewService(realtime.GlobalHub.ConnectedClients)
	metricsService.Start()
	defer metricsService.Stop()
	handlers.Metrics = metricsService

	mux := http.NewServeMux()

	// Public endpoints
	publicRoute(mux, "/health", middleware.GlobalRateLimit, NoCache, handlers.HealthHandler)
	publicRoute(mux, "/server", middleware.GlobalRateLimit, Cache1Hour, handlers.GetServerMetadataHandler)
	publicRoute(mux, "/api/auth/register", middleware.AuthRateLimit, NoCache, handlers.RegisterHandler)
	publicRoute(mux, "/api/auth/login", middleware.AuthRateLimit, NoCache, handlers.LoginHandler)
	publicRoute(mux, "/api/auth/oauth", middleware.AuthRateLimit, NoCache, handlers.OAuthHandler)

	// Static file serving for uploads
	mux.Handle("/uploads/", middleware.CacheControl(24*time.Hour, "public")(http.StripPrefix("/uploads/", http.FileServer(http.Dir("uploads/"))).ServeHTTP))

	// WebSocket endpoint
	mux.HandleFunc("/ws", realtime.HandleWebSocket)

	// Session and profile endpoints
	authRoute(mux, "/api/auth/logout", middleware.GlobalRateLimit, NoCache, handlers.LogoutHandler)
	authRoute(mux, "/api/users/me", middleware.GlobalRateLimit, NoCache, handlers.MeHandler)
	authRoute(mux, "/api/users/get", middleware.GlobalRateLimit, Cache5Min, handlers.GetUserHandler)
	authRoute(mux, "/api/users/display-name", middleware.GlobalRateLimit, NoCache, handlers.UpdateDisplayNameHandler)
	authRoute(mux, "/api/users/avatar", middleware.GlobalRateLimit, NoCache, handlers.UploadAvatarHandler)

	// Channel endpoints
	authRoute(mux, "/channels", middleware.GlobalRateLimit, Cache2Min, handlers.ListChannelsHandler)
	authRoute(mux, "/channels/get", middleware.GlobalRateLimit, Cache30Sec, handlers.GetChannelHandler)
	authRoute(mux, "/channels/create", middleware.GlobalRateLimit, NoCache, handlers.CreateChannelHandler)
	authRoute(mux, "/channels/update", middleware.GlobalRateLimit, NoCache, handlers.UpdateChannelHandler)
	authRoute(mux, "/channels/delete", middleware.GlobalRateLimit, NoCache, handlers.DeleteChannelHandler)

	// Membership endpoints
	authRoute(mux, "/channels/members", middleware.GlobalRateLimit, Cache30Sec, handlers.GetChannelMembersHandler)
	authRoute(mux, "/channels/join", middleware.GlobalRateLimit, NoCache, handlers.JoinChannelHandler)
	authRoute(mux, "/channels/leave", middleware.GlobalRateLimit, NoCache, handlers.LeaveChannelHandler)
	authRoute(mux, "/channels/invite", middleware.GlobalRateLimit, NoCache, handlers.InviteMemberHandler)
	authRoute(mux, "/channels/members/remove", middleware.GlobalRateLimit, NoCache, handlers.RemoveMemberHandler)
	authRoute(mux, "/channels/members/role", middleware.GlobalRateLimit, NoCache, handlers.UpdateMemberRoleHandler)
	authRoute(mux, "/channels/transfer", middleware.GlobalRateLimit, NoCache, handlers.TransferOwnershipHandler)

	// Message endpoints with specific message rate limiting
	authRoute(mux, "/messages", middleware.GlobalRateLimit, Cache30Sec, handlers.GetChannelMessagesHandler)
	authRoute(mux, "/messages/send", middleware.MessageRateLimit, NoCache, handlers.SendMessageHandler)

	// Operational metrics
	authRoute(mux, "/metrics", middleware.GlobalRateLimit, NoCache, handlers.GetMetricsHandler)
	authRoute(mux, "/metrics/hourly", middleware.GlobalRateLimit, Cache5Min, handlers.GetHourlyMetricsHandler)

	logger.Infof("%s listening on %s", config.Conf.Name, config.Conf.Port)
	logger.Fatalf("server stopped: %v", http.ListenAndServe(config.Conf.Port, middleware.CORS(mux)))
}
