package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marigoldlabs/keepsake/backend/internal/accounts"
	"github.com/marigoldlabs/keepsake/backend/internal/books"
	"github.com/marigoldlabs/keepsake/backend/internal/contributions"
	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

const (
	currentUserContextKey = "keepsake_user"

	defaultListLimit = 20
)

var (
	errMissingAccountsService      = errors.New("accounts service dependency required")
	errMissingBooksService         = errors.New("books service dependency required")
	errMissingContributionsService = errors.New("contributions service dependency required")
	errMissingObjectStore          = errors.New("object store dependency required")
)

// Dependencies wires the HTTP layer to its collaborating services.
type Dependencies struct {
	Accounts       *accounts.Service
	Books          *books.Service
	Contributions  *contributions.Service
	Objects        storage.Store
	FrontendOrigin string
	Logger         *zap.Logger
	Clock          func() time.Time
}

// NewHTTPHandler assembles the gin router for the full API surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccountsService
	}
	if deps.Books == nil {
		return nil, errMissingBooksService
	}
	if deps.Contributions == nil {
		return nil, errMissingContributionsService
	}
	if deps.Objects == nil {
		return nil, errMissingObjectStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	allowedOrigins := []string{"*"}
	if strings.TrimSpace(deps.FrontendOrigin) != "" {
		allowedOrigins = []string{strings.TrimSpace(deps.FrontendOrigin)}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts:      deps.Accounts,
		books:         deps.Books,
		contributions: deps.Contributions,
		objects:       deps.Objects,
		logger:        logger,
		clock:         clock,
	}

	api := router.Group("/api")
	api.GET("/health", handler.handleHealth)

	api.POST("/auth/register", handler.handleRegister)
	api.POST("/auth/login", handler.handleLogin)

	api.GET("/memory-books/share/:shareId", handler.handleGetBookByShareID)
	api.GET("/memory-books/contribute/:contributeId", handler.handleGetBookByContributeID)
	api.GET("/memory-books/:id/contributions", handler.handleListContributions)
	api.POST("/memory-books/:id/contributions", handler.identifyRequest, handler.handleSubmitContributions)
	api.GET("/images/:filename", handler.handleGetImage)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/auth/me", handler.handleMe)
	protected.GET("/memory-books", handler.handleListBooks)
	protected.POST("/memory-books", handler.handleCreateBook)
	protected.GET("/memory-books/:id", handler.handleGetBook)
	protected.PUT("/memory-books/:id", handler.handleUpdateBook)
	protected.DELETE("/memory-books/:id", handler.handleDeleteBook)
	protected.POST("/upload", handler.handleUpload)
	protected.DELETE("/images/:filename", handler.handleDeleteImage)

	return router, nil
}

type httpHandler struct {
	accounts      *accounts.Service
	books         *books.Service
	contributions *contributions.Service
	objects       storage.Store
	logger        *zap.Logger
	clock         func() time.Time
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeRequest requires a valid bearer token and resolves it to a live
// account before the handler runs.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header missing or invalid")
		return
	}

	user, err := h.accounts.Verify(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("token verification failed", zap.Error(err))
		abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
		return
	}

	c.Set(currentUserContextKey, user)
	c.Next()
}

// identifyRequest resolves a bearer token when one is supplied but lets
// anonymous requests through. Contribution links work without an account;
// a recognized contributor is simply recorded.
func (h *httpHandler) identifyRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.Next()
		return
	}
	if user, err := h.accounts.Verify(c.Request.Context(), token); err == nil {
		c.Set(currentUserContextKey, user)
	}
	c.Next()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func currentUser(c *gin.Context) (accounts.User, bool) {
	value, ok := c.Get(currentUserContextKey)
	if !ok {
		return accounts.User{}, false
	}
	user, ok := value.(accounts.User)
	return user, ok
}

// parsePagination reads limit/offset query values. Unparseable or negative
// values fall back to the defaults rather than failing the request.
func parsePagination(c *gin.Context) (int, int) {
	limit := defaultListLimit
	offset := 0

	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return limit, offset
}
