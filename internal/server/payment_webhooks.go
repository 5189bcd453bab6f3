package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/namevault/namevault/internal/payment/domain"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// HandlePaymentWebhook ingests one provider delivery. Acknowledged outcomes
// (processed, replayed, ignored) all answer 200 so the provider stops
// retrying; anything else answers an error status and the provider redelivers.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	event, err := s.webhookParser.Parse(provider, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"success": true, "status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	result, err := s.paymentSvc.ProcessEvent(c.Request.Context(), event, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			c.JSON(http.StatusOK, gin.H{"success": true, "status": "replayed"})
			return
		}
		s.log.Error("webhook processing failed",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"success": true, "status": "processed"}
	if result.OrderID != nil {
		resp["order_id"] = result.OrderID.String()
	}
	if result.DomainID != nil {
		resp["domain_id"] = result.DomainID.String()
	}
	if result.SubscriptionID != nil {
		resp["subscription_id"] = result.SubscriptionID.String()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListPaymentEvents(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	events, err := s.paymentSvc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}
