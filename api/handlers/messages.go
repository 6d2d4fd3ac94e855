package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/internal/repository"
	"github.com/dealflow/mailsync/internal/tracing"
	"github.com/dealflow/mailsync/services"
)

type MessagesHandler struct {
	repos    *repository.Repositories
	services *services.Services
}

func NewMessagesHandler(repos *repository.Repositories, services *services.Services) *MessagesHandler {
	return &MessagesHandler{
		repos:    repos,
		services: services,
	}
}

// Send pushes an email through the provider and records the optimistic local
// row so the message shows up before the next sync cycle
func (h *MessagesHandler) Send() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "MessagesHandler.Send")
		defer span.Finish()
		tracing.TagComponentRest(span)
		accountID := c.Param("id")
		tracing.TagAccount(span, accountID)

		var email dto.OutgoingEmail
		if err := c.ShouldBindJSON(&email); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if email.From.Address == "" || len(email.To) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
			return
		}

		account, err := h.repos.AccountRepository.GetByID(ctx, accountID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		providerResp, err := h.services.ProviderClient.SendEmail(ctx, account.AccessToken, email)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		row, err := h.services.ReconcileService.RecordOutgoingEmail(ctx, accountID, email, providerResp)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// The provider echo usually lands within seconds
		h.services.SyncService.TriggerIncrementalSync(ctx, accountID)

		c.JSON(http.StatusCreated, row)
	}
}

// Thread returns the emails of a thread in ascending received order
func (h *MessagesHandler) Thread() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "MessagesHandler.Thread")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEntity(span, c.Param("id"))

		thread, err := h.repos.EmailThreadRepository.GetByID(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if thread == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
			return
		}

		emails, err := h.repos.EmailRepository.ListByThread(ctx, thread.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"thread": thread, "emails": emails})
	}
}
