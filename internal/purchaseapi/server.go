package purchaseapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"custetl/internal/logger"
)

type historyRequest struct {
	Mobiles []string `json:"mobiles" binding:"required"`
}

// NewRouter builds the HTTP API around gen.
func NewRouter(gen *Generator, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Discard()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/purchase-history", func(c *gin.Context) {
		var req historyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		purchases := gen.History(req.Mobiles)
		log.Debug("purchase history served", "mobiles", len(req.Mobiles), "purchases", len(purchases))

		c.JSON(http.StatusOK, gin.H{"purchases": purchases})
	})

	return router
}
