package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	assignmentHttp "github.com/nekogravitycat/court-booking-engine/internal/assignment/http"
	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	availabilityHttp "github.com/nekogravitycat/court-booking-engine/internal/availability/http"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	bookingHttp "github.com/nekogravitycat/court-booking-engine/internal/booking/http"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	courtHttp "github.com/nekogravitycat/court-booking-engine/internal/court/http"
	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	holdHttp "github.com/nekogravitycat/court-booking-engine/internal/hold/http"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
	pricingHttp "github.com/nekogravitycat/court-booking-engine/internal/pricing/http"
)

// Services is everything the HTTP layer talks to.
type Services struct {
	Courts       court.Service
	Availability availabilityHttp.Reader
	Resolver     *assignment.Resolver
	Pricer       *pricing.Calculator
	Holds        hold.Service
	Booking      booking.Service
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(svc Services, jwtManager *auth.JWTManager, prodOrigins string, isProduction bool) *gin.Engine {
	r := gin.New()

	// Global Middleware:
	// - RequestID: Attaches a request-scoped zerolog logger.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	// - Logging: Logs request information once the handler completes.
	r.Use(WithRequestID(), WithRecovery(), WithLogging())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{
		"http://localhost:8081", // Swagger
	}
	if isProduction && prodOrigins != "" {
		config.AllowOrigins = strings.Split(prodOrigins, ",")
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	config.ExposeHeaders = []string{RequestIDHeader}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(jwtManager)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	courtHandler := courtHttp.NewHandler(svc.Courts)
	availabilityHandler := availabilityHttp.NewHandler(svc.Availability)
	assignmentHandler := assignmentHttp.NewHandler(svc.Courts, svc.Resolver)
	pricingHandler := pricingHttp.NewHandler(svc.Courts, svc.Pricer)
	holdHandler := holdHttp.NewHandler(svc.Holds)
	bookingHandler := bookingHttp.NewHandler(svc.Booking, svc.Holds)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		courtHttp.RegisterRoutes(v1, courtHandler, authMiddleware)
		availabilityHttp.RegisterRoutes(v1, availabilityHandler, authMiddleware)
		assignmentHttp.RegisterRoutes(v1, assignmentHandler, authMiddleware)
		pricingHttp.RegisterRoutes(v1, pricingHandler, authMiddleware)
		holdHttp.RegisterRoutes(v1, holdHandler, authMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
	}

	return r
}
