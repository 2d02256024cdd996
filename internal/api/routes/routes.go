package routes

import (
	"net/http"
	"time"

	"signal-relay/internal/api/handlers"
	"signal-relay/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

const healthPath = "/healthz"

// Dependencies are the handlers and middleware the router mounts.
type Dependencies struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Presence *handlers.PresenceHandler
	Chats    *handlers.ChatHandler
	Upload   *handlers.UploadHandler
	WS       *handlers.WSHandler
	AuthMW   *middleware.AuthMiddleware
	LimitMW  *middleware.RateLimitMiddleware

	AllowedOrigins []string
}

type Router struct {
	engine *gin.Engine
	deps   Dependencies
}

func NewRouter(deps Dependencies) *Router {
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(deps.AllowedOrigins))
	engine.Use(middleware.LogApi(healthPath))

	return &Router{engine: engine, deps: deps}
}

func (r *Router) SetupRoutes() {
	r.engine.GET(healthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api/v1")

	// The handshake authenticates through the token query parameter itself.
	api.GET("/ws", r.deps.WS.HandleWebSocket)

	// Public routes
	authRoutes := api.Group("/auth")
	authRoutes.Use(r.deps.LimitMW.RateLimitIP(50, time.Minute))
	{
		authRoutes.POST("/register", r.deps.Auth.Register)
		authRoutes.POST("/login", r.deps.Auth.Login)
	}

	// Authenticated routes
	auth := api.Group("/")
	auth.Use(r.deps.AuthMW.RequireAuth())
	{
		auth.GET("/ws/stats", r.deps.WS.Stats)

		users := auth.Group("/users")
		users.Use(r.deps.LimitMW.RateLimit(100, time.Minute))
		{
			users.GET("", r.deps.Users.ListUsers)
			users.GET("/online", r.deps.Presence.GetOnlineUsers)
			users.POST("/search", r.deps.Users.SearchUser)
			users.GET("/:id/key", r.deps.Users.GetPublicKey)
			users.POST("/key", r.deps.Users.UpdatePublicKey)
		}

		chats := auth.Group("/chats")
		chats.Use(r.deps.LimitMW.RateLimit(100, time.Minute))
		{
			chats.GET("", r.deps.Chats.GetChats)
			chats.POST("", r.deps.Chats.CreateChat)
			chats.POST("/create", r.deps.Chats.CreateChat)
			chats.GET("/:id/messages", r.deps.Chats.GetChatMessages)
		}

		upload := auth.Group("/upload")
		upload.Use(r.deps.LimitMW.RateLimit(30, time.Minute))
		{
			upload.POST("", r.deps.Upload.Upload)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
