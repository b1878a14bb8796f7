package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"mailcanvas/backend/internal/api/handlers"
	"mailcanvas/backend/internal/api/middleware"
	"mailcanvas/backend/internal/config"
	"mailcanvas/backend/internal/email"
	"mailcanvas/backend/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, taskClient handlers.IAsynqClient) *gin.Engine {
	templateService := services.NewTemplateService(db)

	r := gin.Default()

	// Global middleware (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.BodyLimitMiddleware(cfg.MaxBodyBytes))

	templateHandler := handlers.NewRestTemplateHandler(templateService, taskClient)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/templates", templateHandler.CreateTemplate)
		apiGroup.GET("/templates", templateHandler.GetAllTemplates)
		// Static routes must be declared alongside the :id route; gin gives
		// them priority over the parameter match.
		apiGroup.GET("/templates/latest", templateHandler.GetLatestTemplate)
		apiGroup.GET("/templates/search/:term", templateHandler.SearchTemplates)
		apiGroup.POST("/templates/send", templateHandler.SendEmail)
		apiGroup.GET("/templates/:id", templateHandler.GetTemplateByID)
		apiGroup.PUT("/templates/:id", templateHandler.UpdateTemplate)
		apiGroup.DELETE("/templates/:id", templateHandler.DeleteTemplate)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"message":   "Email Template API is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route not found"})
	})

	return r
}

// SetupServiceRouter configures and returns the service-control Gin engine:
// a second listener used by deployment tooling and black-box tests for
// shutdown and for fetching Redis-captured simulated emails.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}

		case "getTestEmail":
			var args []string // Expect ["recipient"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [recipient]"})
				return
			}
			recipient := args[0]
			redisKey := email.CapturedKey(recipient)

			// Poll briefly: the worker may still be processing the task.
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()

			var emailJSONData string
			found := false
			const pollAttempts = 10
			for i := 0; i < pollAttempts; i++ {
				data, getErr := rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					emailJSONData = data
					found = true
					if delErr := rdb.Del(ctx, redisKey).Err(); delErr != nil {
						log.Printf("Service API: Failed to delete key %s from Redis: %v", redisKey, delErr)
					}
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				if i < pollAttempts-1 {
					time.Sleep(200 * time.Millisecond)
				}
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJSONData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})

	return r
}
