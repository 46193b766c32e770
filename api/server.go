package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"adventure-editor/autosave"
	"adventure-editor/media"
	"adventure-editor/store"
	"adventure-editor/watcher"
)

// Version is reported by the health check.
const Version = "0.3.0"

// Server is the HTTP API of the editor and the player.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	store       store.Store
	media       *media.LocalStore
	autosave    autosave.Config
	watcher     *watcher.FileWatcher
	hub         *Hub
	sessions    *sessionRegistry
	playthrough *playthroughRegistry
	wsUpgrader  websocket.Upgrader
	addr        string
}

// ServerConfig configures a Server. Media and Watcher are optional.
type ServerConfig struct {
	Addr        string
	Store       store.Store
	Media       *media.LocalStore
	Autosave    autosave.Config
	Watcher     *watcher.FileWatcher
	EnableCORS  bool
	CORSOrigins []string
	Debug       bool
}

// NewServer creates the server and its routes. Events of config.Watcher
// are pushed to websocket clients until the watcher stops.
func NewServer(config ServerConfig) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	if config.EnableCORS {
		origins := config.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	s := &Server{
		router:      router,
		store:       config.Store,
		media:       config.Media,
		autosave:    config.Autosave,
		watcher:     config.Watcher,
		hub:         newHub(),
		sessions:    newSessionRegistry(),
		playthrough: newPlaythroughRegistry(maxPlaythroughs),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		addr: config.Addr,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watcher != nil {
		go s.forwardStoreEvents()
	}
	return s
}

// registerValidations adds the binding tags used by request structs.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("proppath", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return strings.TrimSpace(p) != "" && !strings.HasPrefix(p, ".") && !strings.HasSuffix(p, ".")
	})
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.healthCheck)

		adventures := api.Group("/adventures")
		adventures.GET("", s.listAdventures)
		adventures.POST("", s.createAdventure)
		adventures.GET("/:slug", s.getAdventure)
		adventures.GET("/:slug/edit", s.openForEdit)
		adventures.PUT("/:slug", s.saveAdventure)

		s.editorRoutes(api.Group("/editor/:slug"))

		adventures.POST("/:slug/play", s.startPlaythrough)
		play := api.Group("/playthroughs/:id")
		play.GET("", s.getPlaythrough)
		play.POST("/choose", s.choose)
		play.POST("/enter", s.enter)
		play.POST("/back", s.back)
		play.POST("/home", s.home)
		play.DELETE("", s.endPlaythrough)

		sim := api.Group("/simulator/:slug")
		sim.POST("/validate", s.validatePath)
		sim.POST("/simulate", s.simulatePath)
		sim.POST("/suggest", s.suggestPaths)

		api.POST("/media", s.uploadMedia)
		api.DELETE("/media/:adventure/:name", s.deleteMedia)

		api.GET("/watch/status", s.getWatcherStatus)
	}

	if s.media != nil {
		s.router.Static(s.media.BaseURL(), s.media.Dir())
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[api] listening on %s", s.addr)
	log.Printf("[api] websocket on %s/ws", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown saves the open sessions and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	for slug, e := range s.sessions.drain() {
		if err := e.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", slug, err))
		}
	}
	s.hub.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// ============================================
// Handlers
// ============================================

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"version":      Version,
		"sessions":     s.sessions.count(),
		"playthroughs": s.playthrough.count(),
		"clients":      s.hub.Count(),
	})
}

func (s *Server) getWatcherStatus(c *gin.Context) {
	if s.watcher == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"running": s.watcher.IsRunning(),
		"paths":   s.watcher.WatchedPaths(),
	})
}

// ============================================
// WebSocket
// ============================================

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[api] websocket upgrade: %v", err)
		return
	}

	log.Printf("[api] websocket client connected (total: %d)", s.hub.add(conn))

	// keep reading so close frames are processed
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("[api] websocket client disconnected (total: %d)", s.hub.remove(conn))
			return
		}
	}
}

// forwardStoreEvents pushes watcher events to websocket clients.
func (s *Server) forwardStoreEvents() {
	for event := range s.watcher.Events() {
		s.hub.Broadcast(Message{Type: MessageStoreEvent, Slug: event.Slug, Data: event})
	}
}
