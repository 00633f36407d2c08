package router

import (
	"github.com/UdarEdge/HoyPecamos-sub002/internal/config"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/handler"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/infra"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/middleware"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services are built in the composition root (cmd/server) because the caja
// service shares the publisher and job dispatcher with the worker pool.
type Services struct {
	Caja     service.CajaService
	Auth     service.AuthService
	OrdersCB *infra.CircuitBreaker // nil without an orders service
	Events   handler.Subscriber
	Done     <-chan struct{}     // closes open event streams on shutdown
	DLQ      handler.DLQReplayer // nil disables the replay route
}

// Limiters are owned by the caller, which also runs their purge loops.
type Limiters struct {
	Global *middleware.WindowLimiter
	Login  *middleware.WindowLimiter
}

// New wires handlers and middleware and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svc Services, lim Limiters) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(config.SplitRoles(cfg.CORSOrigins)))
	r.Use(middleware.ErrorHandler())
	if lim.Global != nil {
		r.Use(middleware.RateLimit(lim.Global, "Demasiadas solicitudes, intente nuevamente en un minuto"))
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svc.Auth)
	operadoresH := handler.NewOperadoresHandler(svc.Auth)
	cajaH := handler.NewCajaHandler(svc.Caja)
	eventsH := handler.NewEventsHandler(svc.Events, svc.Done)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, svc.OrdersCB))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		if lim.Login != nil {
			auth.POST("/login", middleware.RateLimit(lim.Login, "Demasiados intentos de login, espere un minuto"), authH.Login)
		} else {
			auth.POST("/login", authH.Login)
		}
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		anyOperator := middleware.RequireRole("cajero", "supervisor", "administrador")
		managers := middleware.RequireRole("supervisor", "administrador")

		caja := v1.Group("/caja")
		{
			caja.GET("/denominaciones", anyOperator, cajaH.Denominaciones)

			// History and reporting read from the database.
			sesiones := caja.Group("/sesiones", managers)
			{
				sesiones.GET("", cajaH.Historial)
				sesiones.GET("/:id/reporte", cajaH.Reporte)
				sesiones.GET("/:id/operaciones", cajaH.Operaciones)
				sesiones.GET("/:id/export.xlsx", cajaH.Export)
			}

			// Fine-grained permissions (withdraw, close, reconcile) are
			// checked by the ledger against the operator's role.
			till := caja.Group("/:till", anyOperator, middleware.RequireTill())
			{
				till.POST("/abrir", cajaH.Abrir)
				till.POST("/retiro", cajaH.Retiro)
				till.POST("/consumo-propio", cajaH.ConsumoPropio)
				till.POST("/devolucion", cajaH.Devolucion)
				till.POST("/arqueo", cajaH.Arqueo)
				till.POST("/cerrar", cajaH.Cerrar)
				till.POST("/cerrar/confirmar", cajaH.ConfirmarCierre)
				till.DELETE("/cerrar", managers, cajaH.CancelarCierre)
				till.GET("/activa", cajaH.GetActiva)
				till.GET("/events", eventsH.Stream)
			}
		}

		v1.POST("/operadores", middleware.RequireRole("administrador"), operadoresH.Crear)

		if svc.DLQ != nil {
			dlqH := handler.NewDLQHandler(svc.DLQ)
			v1.POST("/admin/dlq/:queue/replay", middleware.RequireRole("administrador"), dlqH.Replay)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
