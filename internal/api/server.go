package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Relic999/aester-dex/internal/balance"
	"github.com/Relic999/aester-dex/internal/bot"
	"github.com/Relic999/aester-dex/internal/events"
	"github.com/Relic999/aester-dex/internal/stats"
	"github.com/Relic999/aester-dex/pkg/db"
)

// Server wires HTTP endpoints around the event bus and the bot.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	DB      *db.Database
	Stats   *stats.Tracker
	Balance *balance.Cache
	Bot     *bot.Bot
	Meta    SystemMeta

	jwtSecret    string
	passwordHash []byte
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	DryRun   bool   `json:"dryRun"`
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Version  string `json:"version"`
}

// NewServer builds the router and registers all routes.
func NewServer(bus *events.Bus, database *db.Database, tracker *stats.Tracker, bal *balance.Cache, b *bot.Bot, meta SystemMeta, jwtSecret, dashboardPassword string) (*Server, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	hash, err := hashPassword(dashboardPassword)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Router:       r,
		Bus:          bus,
		DB:           database,
		Stats:        tracker,
		Balance:      bal,
		Bot:          b,
		Meta:         meta,
		jwtSecret:    jwtSecret,
		passwordHash: hash,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.Router.GET("/ws", s.websocket)
	s.Router.POST("/api/auth/login", s.login)

	api := s.Router.Group("/api", s.authRequired())
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/stats", s.getStats)
		api.GET("/trades", s.getTrades)
		api.GET("/orders", s.getOrders)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UnixMilli()})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	pos := s.Bot.Position()
	c.JSON(http.StatusOK, gin.H{
		"meta":      s.Meta,
		"position":  pos,
		"frozen":    s.Bot.Frozen(),
		"barCount":  s.Bot.BarCount(),
		"usdt":      s.Balance.Total(),
		"available": s.Balance.Available(),
		"lastSync":  s.Balance.LastSync(),
	})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Stats.Summarize())
}

func (s *Server) getTrades(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusOK, s.Stats.Closed())
		return
	}
	trades, err := s.DB.ListClosedTrades(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) getOrders(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusOK, []struct{}{})
		return
	}
	orders, err := s.DB.ListRecentOrders(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	return s.Router.Run(addr)
}
