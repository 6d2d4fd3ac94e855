package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dealflow/mailsync/internal/tracing"
	"github.com/dealflow/mailsync/services"
)

type AttachmentsHandler struct {
	services *services.Services
}

func NewAttachmentsHandler(services *services.Services) *AttachmentsHandler {
	return &AttachmentsHandler{
		services: services,
	}
}

// Extract forces extraction of one attachment and returns the processed row
func (h *AttachmentsHandler) Extract() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AttachmentsHandler.Extract")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEntity(span, c.Param("id"))

		attachment, err := h.services.AttachmentService.EnsureProcessed(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, attachment)
	}
}

// ThreadInsights returns bounded summaries of the thread's documents for
// prompt assembly
func (h *AttachmentsHandler) ThreadInsights() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AttachmentsHandler.ThreadInsights")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEntity(span, c.Param("id"))

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
		insights, err := h.services.AttachmentService.GetInsightsForThread(ctx, c.Param("id"), limit)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"insights": insights})
	}
}
