// Package api exposes the engine over HTTP: merchant payment endpoints,
// health read-outs and the operator's outage override, all behind
// API-key authentication.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ArpitSharma4/nexus-gateway/internal/contract"
	"github.com/ArpitSharma4/nexus-gateway/internal/payments"
	"github.com/ArpitSharma4/nexus-gateway/internal/routing"
	"github.com/ArpitSharma4/nexus-gateway/internal/security"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the persistence surface the HTTP layer reads and writes
// directly, outside the payment pipeline.
type Store interface {
	MerchantByAPIKeyHash(ctx context.Context, hash string) (*storage.Merchant, error)
	ListGatewayHealth(ctx context.Context) ([]storage.GatewayHealth, error)
	SetSimulatedOutage(ctx context.Context, gatewayName string, outage bool) error
	RulesForMerchant(ctx context.Context, merchantID string) ([]storage.RoutingRule, error)
	CreateRule(ctx context.Context, rule *storage.RoutingRule) error
	DeleteRule(ctx context.Context, id string) error
}

// CacheInvalidator drops the cached health snapshot after an admin
// override so routing sees the change immediately.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler holds the dependencies of the HTTP layer.
type Handler struct {
	payments *payments.Service
	store    Store
	cards    *contract.Validator
	cache    CacheInvalidator
	log      *logrus.Logger
	registry prometheus.Gatherer
}

func NewHandler(svc *payments.Service, store Store, cards *contract.Validator, cache CacheInvalidator, registry prometheus.Gatherer, log *logrus.Logger) *Handler {
	return &Handler{
		payments: svc,
		store:    store,
		cards:    cards,
		cache:    cache,
		registry: registry,
		log:      log,
	}
}

// Router builds the gin engine with all routes mounted.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("nexus-gateway"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1", h.authenticate)
	{
		v1.POST("/payments", h.createPayment)
		v1.GET("/payments/:id", h.getPayment)
		v1.POST("/payments/:id/process", h.processPayment)

		v1.GET("/gateways/health", h.listGatewayHealth)
		v1.POST("/admin/gateways/:name/outage", h.setOutage)

		v1.GET("/rules", h.listRules)
		v1.POST("/rules", h.createRule)
		v1.DELETE("/rules/:id", h.deleteRule)
	}
	return router
}

const merchantKey = "merchant"

// authenticate resolves the merchant behind the X-API-Key header. Keys
// are stored hashed, so the lookup is by digest.
func (h *Handler) authenticate(c *gin.Context) {
	apiKey := c.GetHeader("X-API-Key")
	if apiKey == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing X-API-Key header"})
		return
	}
	merchant, err := h.store.MerchantByAPIKeyHash(c.Request.Context(), security.HashAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		h.log.WithError(err).Error("merchant lookup failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.Set(merchantKey, merchant)
	c.Next()
}

func currentMerchant(c *gin.Context) *storage.Merchant {
	return c.MustGet(merchantKey).(*storage.Merchant)
}

type createPaymentRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"required,len=3"`
}

func (h *Handler) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	merchant := currentMerchant(c)
	intent, created, err := h.payments.Create(c.Request.Context(), merchant.ID, req.Amount, req.Currency, idempotencyKey)
	if err != nil {
		h.log.WithError(err).Error("create payment intent failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment intent"})
		return
	}
	if intent.MerchantID != merchant.ID {
		// The idempotency key collided with another merchant's intent.
		c.JSON(http.StatusConflict, gin.H{"error": "Idempotency key already in use"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, intentResponse(intent))
}

func (h *Handler) getPayment(c *gin.Context) {
	intent, err := h.payments.Intent(c.Request.Context(), c.Param("id"))
	if err != nil || intent.MerchantID != currentMerchant(c).ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment intent not found"})
		return
	}
	c.JSON(http.StatusOK, intentResponse(intent))
}

type processPaymentRequest struct {
	CardNumber string `json:"card_number"`
	CVV        string `json:"cvv"`
}

func (h *Handler) processPayment(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	ok, violations, err := h.cards.Validate(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": contract.FormatErrors(violations)})
		return
	}
	var req processPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	merchant := currentMerchant(c)
	existing, err := h.payments.Intent(c.Request.Context(), c.Param("id"))
	if err != nil || existing.MerchantID != merchant.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment intent not found"})
		return
	}

	intent, result, err := h.payments.Process(c.Request.Context(), existing.ID, payments.CardDetails{
		CardNumber: req.CardNumber,
		CVV:        req.CVV,
	})
	switch {
	case errors.Is(err, payments.ErrIntentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment intent not found"})
		return
	case errors.Is(err, payments.ErrIntentTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": "Payment intent already in a terminal state"})
		return
	case err != nil:
		h.log.WithError(err).Error("payment processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            intent.ID,
		"status":        result.Status,
		"gateway_used":  result.GatewayUsed,
		"bank_decision": result.BankDecision,
		"bank_reason":   result.BankReason,
		"trace":         result.Trace,
	})
}

func intentResponse(intent *storage.PaymentIntent) gin.H {
	return gin.H{
		"id":           intent.ID,
		"merchant_id":  intent.MerchantID,
		"amount":       intent.Amount,
		"currency":     intent.Currency,
		"status":       intent.Status,
		"gateway_used": intent.GatewayUsed,
		"created_at":   intent.CreatedAt,
	}
}

func (h *Handler) listGatewayHealth(c *gin.Context) {
	records, err := h.store.ListGatewayHealth(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("gateway health lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load gateway health"})
		return
	}
	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"gateway_name":        rec.GatewayName,
			"status":              rec.Status,
			"latency_ms":          rec.LatencyMs,
			"is_simulated_outage": rec.IsSimulatedOutage,
			"message":             rec.Message,
			"last_checked_at":     rec.LastCheckedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"gateways": out})
}

type outageRequest struct {
	Outage *bool `json:"outage" binding:"required"`
}

func (h *Handler) setOutage(c *gin.Context) {
	var req outageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	name := c.Param("name")
	if err := h.store.SetSimulatedOutage(c.Request.Context(), name, *req.Outage); err != nil {
		h.log.WithError(err).Error("outage override failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update outage state"})
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(c.Request.Context()); err != nil {
			h.log.WithError(err).Warn("health cache invalidation failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"gateway_name": name, "is_simulated_outage": *req.Outage})
}

type createRuleRequest struct {
	RuleType    string `json:"rule_type" binding:"required"`
	GatewayName string `json:"gateway_name" binding:"required"`
	Conditions  string `json:"conditions"`
	Priority    int    `json:"priority"`
}

func (h *Handler) createRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	rule := &storage.RoutingRule{
		MerchantID:  currentMerchant(c).ID,
		RuleType:    req.RuleType,
		GatewayName: req.GatewayName,
		Conditions:  req.Conditions,
		Priority:    req.Priority,
	}
	if err := routing.ValidateRule(*rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule: " + err.Error()})
		return
	}
	if err := h.store.CreateRule(c.Request.Context(), rule); err != nil {
		h.log.WithError(err).Error("rule creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		return
	}
	c.JSON(http.StatusCreated, ruleResponse(rule))
}

func (h *Handler) listRules(c *gin.Context) {
	rules, err := h.store.RulesForMerchant(c.Request.Context(), currentMerchant(c).ID)
	if err != nil {
		h.log.WithError(err).Error("rule lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load rules"})
		return
	}
	out := make([]gin.H, 0, len(rules))
	for i := range rules {
		out = append(out, ruleResponse(&rules[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func (h *Handler) deleteRule(c *gin.Context) {
	id := c.Param("id")
	merchant := currentMerchant(c)

	// Scope the delete to the caller's own rules.
	rules, err := h.store.RulesForMerchant(c.Request.Context(), merchant.ID)
	if err != nil {
		h.log.WithError(err).Error("rule lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load rules"})
		return
	}
	owned := false
	for _, rule := range rules {
		if rule.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}
	if err := h.store.DeleteRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.log.WithError(err).Error("rule deletion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		return
	}
	c.Status(http.StatusNoContent)
}

func ruleResponse(rule *storage.RoutingRule) gin.H {
	return gin.H{
		"id":           rule.ID,
		"rule_type":    rule.RuleType,
		"gateway_name": rule.GatewayName,
		"conditions":   rule.Conditions,
		"priority":     rule.Priority,
	}
}
