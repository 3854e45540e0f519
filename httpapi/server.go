package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/cactusmakesperfect/rsvp/middleware"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Service is the subset of *rsvp.Service the handlers call.
type Service interface {
	middleware.Authenticator
	RequestLogin(ctx context.Context, email string) (rsvp.LoginTicket, error)
	Verify(ctx context.Context, loginToken, email, code string) (rsvp.VerifyResult, error)
	GetRSVP(ctx context.Context, subject string) (rsvp.Record, error)
	SubmitRSVP(ctx context.Context, subject string, record rsvp.Record) (rsvp.Record, error)
	Ping(ctx context.Context) error
}

// Options configures NewServer. All fields are optional.
type Options struct {
	Logger *zap.Logger
	// MetricsHandler is mounted at GET /metrics when set.
	MetricsHandler http.Handler
	// AllowOrigins defaults to "*".
	AllowOrigins []string
	// ServiceName labels spans created by otelgin. Defaults to "rsvp".
	ServiceName string
}

// Server wires the JSON API onto a gin engine.
type Server struct {
	svc      Service
	logger   *zap.Logger
	validate *validator.Validate
	router   *gin.Engine
	now      func() time.Time
}

// NewServer builds the router and mounts every route.
func NewServer(svc Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.ServiceName
	if name == "" {
		name = "rsvp"
	}
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware(name))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestContext())

	s := &Server{
		svc:      svc,
		logger:   logger,
		validate: newValidator(),
		router:   router,
		now:      time.Now,
	}
	s.registerRoutes(opts.MetricsHandler)
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes(metrics http.Handler) {
	s.router.GET("/health", s.health)
	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.health)

		auth := v1.Group("/auth")
		{
			auth.POST("/request-login", s.requestLogin)
			auth.POST("/verify", s.verify)
		}

		rsvps := v1.Group("/rsvps", middleware.Guard(s.svc))
		{
			rsvps.GET("/me", s.getRSVP)
			rsvps.POST("/me", s.submitRSVP)
		}
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
