package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"portfoliogo/internal/auth"
	"portfoliogo/internal/knowledge"
	"portfoliogo/internal/logger"
	"portfoliogo/internal/models"
	"portfoliogo/internal/redis"
	"portfoliogo/internal/service/chat"
	"portfoliogo/internal/service/content"
)

// Options carries the handler knobs that come from config.
type Options struct {
	FileBaseDir    string
	MaxUploadBytes int64
	RateLimit      int
	RateWindow     time.Duration
}

const defaultMaxUploadBytes = 10 << 20 // 10 MB

const (
	projectsCacheKey = "cache:projects"
	postsCacheKey    = "cache:posts"
	contentCacheTTL  = 5 * time.Minute
)

// Handler wires HTTP routes to the chat, content, and knowledge services.
type Handler struct {
	chat      *chat.Service
	chatStore *chat.Store
	content   *content.Service
	knowledge *knowledge.Store
	auth      *auth.Service
	cache     *redis.Client
	log       *logger.Logger
	opts      Options
}

// NewHandler constructs a Handler instance.
func NewHandler(chatSvc *chat.Service, chatStore *chat.Store, contentSvc *content.Service, knowledgeStore *knowledge.Store, authSvc *auth.Service, cache *redis.Client, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		chat:      chatSvc,
		chatStore: chatStore,
		content:   contentSvc,
		knowledge: knowledgeStore,
		auth:      authSvc,
		cache:     cache,
		log:       log,
		opts:      opts,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/chat", h.chatRateLimit(), h.handleChatTurn)
	api.GET("/projects", h.listPublicProjects)
	api.GET("/projects/:slug", h.getPublicProject)
	api.GET("/posts", h.listPublicPosts)
	api.GET("/posts/:slug", h.getPublicPost)
	api.POST("/admin/login", h.adminLogin)

	admin := api.Group("/admin")
	admin.Use(h.auth.Middleware())
	admin.POST("/logout", h.adminLogout)
	admin.GET("/projects", h.adminListProjects)
	admin.POST("/projects", h.createProject)
	admin.PUT("/projects/:id", h.updateProject)
	admin.DELETE("/projects/:id", h.deleteProject)
	admin.GET("/posts", h.adminListPosts)
	admin.POST("/posts", h.createPost)
	admin.PUT("/posts/:id", h.updatePost)
	admin.DELETE("/posts/:id", h.deletePost)
	admin.POST("/uploads", h.uploadAsset)
	admin.GET("/uploads", h.listAssets)
	admin.DELETE("/uploads/:id", h.deleteAsset)
	admin.POST("/knowledge/rebuild", h.rebuildKnowledge)
	admin.GET("/conversations", h.listConversations)
	admin.GET("/conversations/:id", h.getConversation)
}

type turnRequest struct {
	Message        string `json:"message"`
	SessionID      string `json:"sessionId"`
	ConversationID int64  `json:"conversationId"`
	Context        string `json:"context"`
	Mode           string `json:"mode"`
	CurrentNodeID  string `json:"currentNodeId"`
	UserChoice     string `json:"userChoice"`
}

type turnResponse struct {
	Message        string          `json:"message"`
	Options        []models.Option `json:"options"`
	ConversationID int64           `json:"conversationId"`
	MessageID      int64           `json:"messageId"`
	Mode           string          `json:"mode"`
	NextNodeID     string          `json:"nextNodeId,omitempty"`
}

func (h *Handler) handleChatTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mode, err := chat.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chat.HandleTurn(c.Request.Context(), chat.TurnRequest{
		ConversationID: req.ConversationID,
		SessionID:      req.SessionID,
		Context:        req.Context,
		Mode:           mode,
		Message:        req.Message,
		CurrentNodeID:  req.CurrentNodeID,
		UserChoice:     req.UserChoice,
	})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("chat turn failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	options := resp.Options
	if options == nil {
		options = []models.Option{}
	}
	c.JSON(http.StatusOK, turnResponse{
		Message:        resp.Message,
		Options:        options,
		ConversationID: resp.ConversationID,
		MessageID:      resp.MessageID,
		Mode:           resp.Mode.String(),
		NextNodeID:     resp.NextNodeID,
	})
}

// chatRateLimit is a fixed-window limiter keyed by client IP. Without redis
// (or with a zero limit) it lets everything through.
func (h *Handler) chatRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || h.opts.RateLimit <= 0 {
			c.Next()
			return
		}
		key := "chat_rate:" + c.ClientIP()
		count, err := h.cache.Incr(c.Request.Context(), key, h.opts.RateWindow)
		if err != nil {
			// Fail open: a cache outage should not take the widget down.
			h.log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if count > int64(h.opts.RateLimit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			return
		}
		c.Next()
	}
}

func (h *Handler) listPublicProjects(c *gin.Context) {
	if body, ok := h.cachedBody(c, projectsCacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}
	projects, err := h.content.ListProjects(c.Request.Context(), true)
	if err != nil {
		h.log.Error("list projects failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	h.respondCaching(c, projectsCacheKey, gin.H{"projects": projects})
}

func (h *Handler) getPublicProject(c *gin.Context) {
	project, err := h.content.GetProjectBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		h.log.Error("get project failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) listPublicPosts(c *gin.Context) {
	if body, ok := h.cachedBody(c, postsCacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}
	posts, err := h.content.ListPosts(c.Request.Context(), true)
	if err != nil {
		h.log.Error("list posts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	h.respondCaching(c, postsCacheKey, gin.H{"posts": posts})
}

// cachedBody returns the cached response for key, when redis is configured
// and holds one.
func (h *Handler) cachedBody(c *gin.Context, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	val, err := h.cache.Get(c.Request.Context(), key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			h.log.Warn("content cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return []byte(val), true
}

// respondCaching sends payload and stores the encoded body under key.
func (h *Handler) respondCaching(c *gin.Context, key string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusOK, payload)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), key, string(data), contentCacheTTL); err != nil {
			h.log.Warn("content cache write failed", "key", key, "error", err)
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// invalidateContentCache drops the cached public listings after an admin
// write.
func (h *Handler) invalidateContentCache(c *gin.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(c.Request.Context(), projectsCacheKey, postsCacheKey); err != nil {
		h.log.Warn("content cache invalidation failed", "error", err)
	}
}

func (h *Handler) getPublicPost(c *gin.Context) {
	post, err := h.content.GetPostBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		h.log.Error("get post failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, post)
}
