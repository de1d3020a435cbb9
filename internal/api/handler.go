package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency probed by the readiness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	lifecycle *service.LifecycleService
	inventory *service.InventoryService
	auth      *service.AuthService
	readiness map[string]Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(lifecycle *service.LifecycleService, inventory *service.InventoryService, auth *service.AuthService) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		inventory: inventory,
		auth:      auth,
		readiness: map[string]Pinger{},
	}
}

// AddReadinessCheck registers a dependency that must answer before /ready reports ready
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.readiness[name] = p
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/v1/login", h.login)

	v1 := router.Group("/api/v1", AuthMiddleware(h.auth))
	{
		v1.POST("/logout", h.logout)

		requests := v1.Group("/requests")
		requests.POST("", RequireRole(models.RoleCustodian), h.createRequest)
		requests.GET("", h.listRequests)
		requests.GET("/:id", h.getRequest)
		requests.GET("/:id/history", h.getHistory)
		requests.POST("/:id/transition", h.transitionRequest)
		requests.POST("/:id/revise", h.reviseRequest)
		requests.POST("/:id/follow-up", h.followUpRequest)

		inventory := v1.Group("/inventory")
		inventory.GET("", h.listItems)
		inventory.GET("/:id", h.getItem)

		custodians := inventory.Group("", RequireRole(models.RoleCustodian))
		custodians.POST("", h.createItem)
		custodians.PUT("/:id", h.updateItem)
		custodians.PUT("/:id/status", h.setItemStatus)
		custodians.DELETE("/:id", h.deleteItem)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every registered dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// login exchanges credentials for a token, also set as the session cookie
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	token, user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	ttl := h.auth.TokenTTL()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)

	actor := service.ActorFromUser(user)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(ttl.Seconds()),
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"full_name": user.FullName,
			"role":      user.Role,
			"branch_id": actor.BranchID,
		},
	})
}

// logout clears the session cookie
func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid ID", nil)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		badRequest(c, "Invalid query parameter "+key, nil)
		return 0, false
	}
	return v, true
}

func idempotencyKey(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetHeader("Idempotency-Key")
}
