package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cogniseal/cogniseal-ledger/internal/config"
	"github.com/cogniseal/cogniseal-ledger/internal/handler"
	"github.com/cogniseal/cogniseal-ledger/internal/middleware"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
	"github.com/cogniseal/cogniseal-ledger/internal/service"
)

// examCacheSeconds is the browser cache lifetime of immutable exam reads.
const examCacheSeconds = 3600

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Exam   *handler.ExamHandler
	Ledger *handler.LedgerHandler
	Tx     *handler.TxHandler
	WS     *handler.WSHandler
}

// Middlewares groups the stateful middleware instances.
type Middlewares struct {
	Metrics   *middleware.Metrics
	TxLimiter *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	examService *service.ExamService,
	handlers *Handlers,
	mw *Middlewares,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.ReleaseMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	if mw.Metrics != nil {
		router.Use(mw.Metrics.Middleware())
		router.GET("/metrics", mw.Metrics.Handler())
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.GET("/network", handlers.Ledger.Network)

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := api.Group("/auth")
	{
		auth.POST("/challenge", handlers.Auth.Challenge)
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireWalletJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Ledger Reads (Public) ──────────────────────────────────────
	exams := api.Group("/exams")
	{
		exams.GET("", middleware.Compress(), handlers.Exam.ListExams)
		exams.GET("/count", handlers.Exam.ExamCount)
		exams.GET("/:exam_id", middleware.CacheControl(examCacheSeconds), handlers.Exam.GetExam)
		exams.GET("/:exam_id/questions", middleware.CacheControl(examCacheSeconds), middleware.Compress(), handlers.Exam.ListQuestions)
		exams.GET("/:exam_id/questions/:index", middleware.CacheControl(examCacheSeconds), handlers.Exam.GetQuestion)
		exams.GET("/:exam_id/attempts/:examinee", handlers.Exam.GetAttemptInfo)
		exams.GET("/:exam_id/roster.xlsx",
			middleware.RequireWalletJWT(authService),
			middleware.RequireExamCreator(examService),
			handlers.Exam.ExportRoster,
		)
	}

	api.GET("/submissions/:submission_id", handlers.Ledger.GetSubmission)
	api.GET("/submissions/:submission_id/score", handlers.Ledger.GetSubmissionScore)
	api.GET("/certificates/:examinee/:exam_id", handlers.Ledger.GetCertificate)
	api.GET("/logs", middleware.Compress(), handlers.Ledger.QueryLogs)
	api.GET("/tx/:tx_hash", handlers.Ledger.GetReceipt)

	// ─── 3. Transactions (JWT + Rate Limited) ──────────────────────────
	tx := api.Group("/tx")
	tx.Use(middleware.RequireWalletJWT(authService))
	if mw.TxLimiter != nil {
		tx.Use(mw.TxLimiter.Middleware())
	}
	{
		tx.POST("/create-exam", handlers.Tx.CreateExam)
		tx.POST("/submit-answers", handlers.Tx.SubmitAnswers)
		tx.POST("/mint-certificate", handlers.Tx.MintCertificate)
	}

	// ─── 4. FHE Gateway ────────────────────────────────────────────────
	// The signed decryption authorization identifies the user.
	api.POST("/fhe/user-decrypt", handlers.Tx.UserDecrypt)

	// ─── 5. WebSocket ──────────────────────────────────────────────────
	if handlers.WS != nil {
		router.GET("/ws/v1/logs", handlers.WS.LogStream)
	}

	return router
}
