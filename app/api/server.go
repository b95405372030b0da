package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/news-comb/app/metrics"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders: []string{"X-Search-Backend"},
	}))

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", handler.ListArticles)
		v1.GET("/articles/search", handler.SearchArticles)
		v1.GET("/articles/:id", handler.GetArticle)
		v1.GET("/sources", handler.ListSources)
		v1.GET("/categories", handler.ListCategories)
		v1.GET("/authors", handler.ListAuthors)
		v1.GET("/fetch-logs", handler.ListFetchLogs)
	}

	// Admin endpoints are only mounted when an access key is configured
	if apiAccessKey != "" {
		admin := v1.Group("")
		admin.Use(authMiddleware(apiAccessKey))
		{
			admin.POST("/fetch", handler.TriggerFetch)
			admin.DELETE("/articles/:id", handler.DeleteArticle)
			admin.DELETE("/articles/:id/force", handler.ForceDeleteArticle)
			admin.POST("/articles/:id/restore", handler.RestoreArticle)
			admin.POST("/index/reindex", handler.Reindex)
		}
		slog.Info("Admin API endpoints enabled with authentication")
	} else {
		slog.Info("Admin API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"articles": "/api/v1/articles",
			"search":   "/api/v1/articles/search",
			"article":  "/api/v1/articles/<id>",
			"authors":  "/api/v1/authors",
			"health":   "/health",
			"metrics":  "/metrics",
		}
		if apiAccessKey != "" {
			endpoints["fetch"] = "/api/v1/fetch (POST, requires X-API-Key header)"
			endpoints["reindex"] = "/api/v1/index/reindex (POST, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "News Comb",
			"description": "News aggregation with full-text search and relational fallback",
			"endpoints":   endpoints,
		})
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
