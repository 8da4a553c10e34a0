package server

import (
	"html/template"
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"donation-gate/internal/repo"
	"donation-gate/internal/service"
)

type Options struct {
	AdminUser   string
	AdminPass   string
	StaticDir   string
	CORSOrigins []string
}

// Server is the donation HTTP surface: checkout, gateway webhook, access links
// and the admin ledger.
type Server struct {
	intents service.IntentService
	access  service.AccessService
	store   repo.IntentRepo
	router  *gin.Engine
}

func NewServer(intents service.IntentService, access service.AccessService, store repo.IntentRepo, opts Options) *Server {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	router.SetHTMLTemplate(template.Must(template.New("admin.html").Funcs(adminFuncs).Parse(adminTemplate)))

	s := &Server{
		intents: intents,
		access:  access,
		store:   store,
		router:  router,
	}

	router.POST("/create_payment", s.handleCreatePayment)
	router.POST("/webhook", s.handleWebhook)
	router.GET("/acesso/:token", s.handleAccess)
	router.GET("/healthz", s.handleHealth)

	admin := router.Group("/admin", gin.BasicAuthForRealm(gin.Accounts{opts.AdminUser: opts.AdminPass}, "admin"))
	{
		admin.GET("", s.handleAdmin)
	}

	if opts.StaticDir != "" {
		files := http.FileServer(http.Dir(opts.StaticDir))
		router.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.Status(http.StatusNotFound)
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the web server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
