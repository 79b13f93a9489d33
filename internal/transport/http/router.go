package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"quizcat-service/internal/app"
	"quizcat-service/internal/logger"
	"quizcat-service/internal/metrics"
)

// RouterConfig bundles everything the HTTP surface talks to.
type RouterConfig struct {
	Quiz      *app.QuizService
	Questions *app.QuestionService
	Progress  *app.ProgressService
	Rewards   *app.RewardService
	Profiles  *app.ProfileService
	Auth      *Authenticator
	// Admins may manage the question bank.
	Admins      []string
	CORSOrigins []string
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
}

// NewRouter wires the REST and websocket endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := logger.OrNop(cfg.Logger).With("component", "http")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	h := &handlers{cfg: cfg, admins: toSet(cfg.Admins), log: log}
	ws := NewWSHandler(cfg.Quiz, log)

	api := router.Group("/api")
	api.Use(cfg.Auth.RequireAuth())
	{
		api.GET("/ws", ws.ServeWS)

		api.GET("/questions", h.listQuestions)
		api.GET("/questions/catalog", h.catalog)
		api.GET("/questions/:id", h.getQuestion)

		admin := api.Group("/questions")
		admin.Use(h.requireAdmin)
		admin.POST("", h.createQuestion)
		admin.PUT("/:id", h.updateQuestion)
		admin.DELETE("/:id", h.deleteQuestion)
		admin.POST("/import", h.importCSV)
		admin.POST("/generate", h.generateQuestions)
		admin.POST("/generated", h.saveGenerated)

		api.POST("/sessions", h.startSession)
		api.GET("/sessions/:id", h.viewSession)
		api.POST("/sessions/:id/select", h.selectChoice)
		api.POST("/sessions/:id/confidence", h.setConfidence)
		api.POST("/sessions/:id/submit", h.submit)
		api.POST("/sessions/:id/skip", h.skip)
		api.POST("/sessions/:id/next", h.advance)
		api.GET("/sessions/:id/result", h.result)
		api.DELETE("/sessions/:id", h.abandon)

		api.GET("/answers", h.listAnswers)
		api.DELETE("/answers/:id", h.deleteAnswer)
		api.GET("/analysis", h.report)

		api.GET("/profile", h.getProfile)
		api.PATCH("/profile", h.updateProfile)

		api.GET("/points", h.balance)
		api.GET("/rewards", h.listRewards)
		api.POST("/rewards", h.createReward)
		api.DELETE("/rewards/:id", h.deleteReward)
		api.POST("/rewards/:id/redeem", h.redeem)
		api.GET("/rewards/claims", h.claims)
	}
	return router
}

type handlers struct {
	cfg    RouterConfig
	admins map[string]struct{}
	log    *logger.Logger
}

func (h *handlers) requireAdmin(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, ok := h.admins[id.UID]; !ok {
		respondError(c, errForbiddenAdmin)
		return
	}
	c.Next()
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		kv := []interface{}{"method", c.Request.Method, "path", c.FullPath(), "status", status}
		if len(c.Errors) > 0 {
			kv = append(kv, "error", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", kv...)
		default:
			log.Debug("request", kv...)
		}
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
