package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/tracing"
	"github.com/dealflow/mailsync/services"
)

type SearchHandler struct {
	services *services.Services
}

func NewSearchHandler(services *services.Services) *SearchHandler {
	return &SearchHandler{
		services: services,
	}
}

// Query runs a search over the account's indexed emails. mode=vector uses
// semantic similarity with a lexical fallback, everything else is lexical.
func (h *SearchHandler) Query() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "SearchHandler.Query")
		defer span.Finish()
		tracing.TagComponentRest(span)
		accountID := c.Param("id")
		tracing.TagAccount(span, accountID)

		term := strings.TrimSpace(c.Query("q"))
		if term == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		var hits []interfaces.SearchHit
		var err error
		if c.Query("mode") == "vector" {
			hits, err = h.services.SearchService.VectorSearch(ctx, accountID, term, limit)
		} else {
			hits, err = h.services.SearchService.Search(ctx, accountID, term, limit)
		}
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"hits": hits})
	}
}
