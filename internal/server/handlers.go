package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"donation-gate/internal/domain"
	"donation-gate/internal/service"
)

const deniedMessage = "Link inválido ou não autorizado."

type createPaymentRequest struct {
	Amount any `json:"amount"`
}

func (s *Server) handleCreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valor inválido"})
		return
	}

	amount, err := service.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valor inválido"})
		return
	}

	checkout, err := s.intents.CreateIntent(c.Request.Context(), amount)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Valor inválido"})
			return
		}
		log.Printf("create payment: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao criar pagamento"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"init_point": checkout.RedirectURL})
}

type webhookBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID any `json:"id"`
	} `json:"data"`
}

// notificationFromRequest extracts the payment id the way the processor sends
// it: ?id=&topic=, ?data.id=&type=, or a JSON body with data.id.
func notificationFromRequest(c *gin.Context) (service.Notification, string) {
	var body webhookBody
	if c.Request.Body != nil {
		_ = json.NewDecoder(c.Request.Body).Decode(&body)
	}

	topic := firstNonEmpty(c.Query("topic"), c.Query("type"), body.Type)
	id := firstNonEmpty(c.Query("id"), c.Query("data.id"), idString(body.Data.ID))

	return service.Notification{PaymentID: id}, topic
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) handleWebhook(c *gin.Context) {
	n, topic := notificationFromRequest(c)
	if topic != "" && topic != "payment" {
		c.String(http.StatusOK, "OK")
		return
	}

	_, err := s.intents.Reconcile(c.Request.Context(), n)
	switch {
	case err == nil:
		c.String(http.StatusOK, "OK")
	case errors.Is(err, domain.ErrInvalidArgument):
		c.String(http.StatusBadRequest, "No payment id")
	case errors.Is(err, domain.ErrNotFound):
		// Acknowledged so the processor stops retrying.
		c.String(http.StatusOK, "OK")
	case errors.Is(err, domain.ErrGatewayRejected):
		// Left to the reconciliation sweep.
		log.Printf("WARN webhook: gateway refused lookup of payment %s, deferring to sweep: %v", n.PaymentID, err)
		c.String(http.StatusOK, "OK")
	default:
		log.Printf("webhook: payment %s: %v", n.PaymentID, err)
		c.String(http.StatusInternalServerError, "Erro no webhook")
	}
}

func (s *Server) handleAccess(c *gin.Context) {
	grant, err := s.access.Authorize(c.Request.Context(), c.Param("token"))
	if errors.Is(err, domain.ErrUnauthorized) {
		c.String(http.StatusNotFound, deniedMessage)
		return
	}
	if err != nil {
		log.Printf("access: %v", err)
		c.String(http.StatusInternalServerError, "Erro interno")
		return
	}
	c.Redirect(http.StatusFound, grant.RedirectURL)
}

func (s *Server) handleAdmin(c *gin.Context) {
	intents, err := s.store.List(c.Request.Context())
	if err != nil {
		log.Printf("admin: %v", err)
		c.String(http.StatusInternalServerError, "Erro interno")
		return
	}
	c.HTML(http.StatusOK, "admin.html", gin.H{"intents": intents})
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.store.Health(c.Request.Context())
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}
