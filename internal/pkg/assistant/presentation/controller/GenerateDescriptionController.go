package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/ai"

	"github.com/gin-gonic/gin"
)

// DescriptionGenerator produces marketing copy for a catalog item.
// Implemented by ai.DescriptionGenerator; tests inject fakes.
type DescriptionGenerator interface {
	Generate(ctx context.Context, productName string, attributes map[string]string) (string, error)
}

// GenerateDescriptionController handles AI product-description generation for
// sellers filling in their catalog items (one controller per endpoint).
type GenerateDescriptionController struct {
	Gen DescriptionGenerator
}

func NewGenerateDescriptionController(gen DescriptionGenerator) *GenerateDescriptionController {
	return &GenerateDescriptionController{Gen: gen}
}

type generateDescriptionRequest struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

func (h *GenerateDescriptionController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestUserID(c) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
			return
		}

		var req generateDescriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": msgBadPayload})
			return
		}

		// Generation is slow; bound it independently of the model backend's
		// own timeout.
		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		description, err := h.Gen.Generate(ctx, req.Name, req.Attributes)
		if err != nil {
			var rle *ai.RateLimitError
			switch {
			case errors.As(err, &rle):
				c.JSON(http.StatusTooManyRequests, gin.H{
					"status":  "error",
					"message": fmt.Sprintf(msgRateLimitedFmt, int(rle.Wait.Seconds()+0.5)),
				})
			case errors.Is(err, ai.ErrEmptyProductName):
				c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "name is required"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgTurnFailed})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "success",
			"description": description,
		})
	}
}
