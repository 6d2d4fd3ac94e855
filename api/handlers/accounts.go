package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/dealflow/mailsync/internal/er"
	"github.com/dealflow/mailsync/internal/models"
	"github.com/dealflow/mailsync/internal/repository"
	"github.com/dealflow/mailsync/internal/tracing"
	"github.com/dealflow/mailsync/services"
)

type AccountsHandler struct {
	repos    *repository.Repositories
	services *services.Services
}

func NewAccountsHandler(repos *repository.Repositories, services *services.Services) *AccountsHandler {
	return &AccountsHandler{
		repos:    repos,
		services: services,
	}
}

type createAccountRequest struct {
	UserID       string `json:"userId" binding:"required"`
	EmailAddress string `json:"emailAddress" binding:"required"`
	Name         string `json:"name"`
	AccessToken  string `json:"accessToken" binding:"required"`
}

// Create registers a mail account and kicks off its initial sync in the
// background
func (h *AccountsHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AccountsHandler.Create")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request createAccountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account := &models.Account{
			UserID:       request.UserID,
			EmailAddress: request.EmailAddress,
			Name:         request.Name,
			AccessToken:  request.AccessToken,
		}
		if err := h.repos.AccountRepository.Create(ctx, account); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		tracing.TagAccount(span, account.ID)

		c.JSON(http.StatusCreated, account)
	}
}

// Get returns one account, access token omitted
func (h *AccountsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AccountsHandler.Get")
		defer span.Finish()
		tracing.TagComponentRest(span)

		account, err := h.repos.AccountRepository.GetByID(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		account.AccessToken = ""
		c.JSON(http.StatusOK, account)
	}
}

// Sync runs the initial sync for an account. Long running: intended to be
// called once after account creation.
func (h *AccountsHandler) Sync() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AccountsHandler.Sync")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagAccount(span, c.Param("id"))

		if err := h.services.SyncService.InitialSync(ctx, c.Param("id")); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(syncErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "synced"})
	}
}

// SyncIncremental triggers a throttled incremental sync and returns
// immediately
func (h *AccountsHandler) SyncIncremental() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AccountsHandler.SyncIncremental")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagAccount(span, c.Param("id"))

		h.services.SyncService.TriggerIncrementalSync(ctx, c.Param("id"))
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
	}
}

// Threads lists the account's threads, most recent first
func (h *AccountsHandler) Threads() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AccountsHandler.Threads")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagAccount(span, c.Param("id"))

		limit, offset := paginationParams(c)
		threads, err := h.repos.EmailThreadRepository.ListByAccount(ctx, c.Param("id"), limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"threads": threads})
	}
}

func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, er.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, er.ErrMissingAccessToken), errors.Is(err, er.ErrMissingDeltaToken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
