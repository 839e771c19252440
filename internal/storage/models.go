// Package storage holds the persistent records the engine reads and
// writes, plus a gorm-backed store over Postgres.
package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lifecycle states for a PaymentIntent. Stored as plain strings to keep
// migrations trivial.
const (
	StatusCreated    = "created"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// TerminalStatuses are the states a payment can never leave.
var TerminalStatuses = []string{StatusSucceeded, StatusFailed, StatusCancelled}

// IsTerminal reports whether a status is terminal.
func IsTerminal(status string) bool {
	for _, s := range TerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// PaymentIntent is one payment attempt initiated by a merchant. The
// idempotency key is globally unique so duplicate submissions replay the
// existing record instead of creating a new one.
type PaymentIntent struct {
	ID             string `gorm:"primaryKey"`
	MerchantID     string `gorm:"index;not null"`
	Amount         int64  `gorm:"not null"` // smallest currency unit
	Currency       string `gorm:"size:3;not null"`
	Status         string `gorm:"size:20;not null"`
	IdempotencyKey string `gorm:"uniqueIndex;not null"`
	GatewayUsed    string `gorm:"size:50"`
	TraceLog       string `gorm:"type:text"` // JSON trace of routing decisions
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoutingRule is a single routing policy row for a merchant. Rules are
// evaluated in ascending priority order, ties broken by insertion order.
type RoutingRule struct {
	ID          string `gorm:"primaryKey"`
	MerchantID  string `gorm:"index;not null"`
	RuleType    string `gorm:"size:30;not null"` // priority, currency, amount_threshold, expression
	GatewayName string `gorm:"size:50;not null"`
	Conditions  string `gorm:"type:text"` // JSON blob interpreted per rule type
	Priority    int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
}

func (r *RoutingRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// GatewayConfig stores per-merchant gateway settings. Absent or disabled
// rows make the gateway unavailable to that merchant regardless of health.
// The credential is opaque to the engine.
type GatewayConfig struct {
	ID          string `gorm:"primaryKey"`
	MerchantID  string `gorm:"uniqueIndex:idx_merchant_gateway;not null"`
	GatewayName string `gorm:"size:50;uniqueIndex:idx_merchant_gateway;not null"`
	Enabled     bool   `gorm:"default:true"`
	APIKey      string `gorm:"column:api_key;type:text"`
	ExtraConfig string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (c *GatewayConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// GatewayHealth is the latest health-check result for one gateway,
// keyed by name. Status fields are written only by the health monitor;
// the simulated-outage flag only by the admin override.
type GatewayHealth struct {
	ID                string  `gorm:"primaryKey"`
	GatewayName       string  `gorm:"size:50;uniqueIndex;not null"`
	Status            string  `gorm:"size:20;not null;default:healthy"`
	IsSimulatedOutage bool    `gorm:"default:false"`
	LatencyMs         float64 `gorm:"not null;default:0"`
	Message           string  `gorm:"type:text"`
	LastCheckedAt     time.Time
}

func (h *GatewayHealth) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// Merchant is a registered platform tenant. The API key is stored hashed;
// the webhook URL, when set, receives signed payment event notifications.
type Merchant struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	APIKeyHashed string `gorm:"uniqueIndex;not null"`
	WebhookURL   string
}

func (m *Merchant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
