package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the gorm-backed persistence layer.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the schema for all engine records.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&PaymentIntent{},
		&RoutingRule{},
		&GatewayConfig{},
		&GatewayHealth{},
		&Merchant{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---- payment intents ----

func (s *Store) CreateIntent(ctx context.Context, intent *PaymentIntent) error {
	return s.db.WithContext(ctx).Create(intent).Error
}

func (s *Store) IntentByID(ctx context.Context, id string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error; err != nil {
		return nil, notFound(err)
	}
	return &intent, nil
}

func (s *Store) IntentByIdempotencyKey(ctx context.Context, key string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&intent).Error; err != nil {
		return nil, notFound(err)
	}
	return &intent, nil
}

// MarkProcessing transitions an intent to the processing state with a
// conditional update that refuses terminal rows. It returns false when
// the row was terminal (or gone), which lets two racing process calls on
// the same intent resolve to exactly one winner.
func (s *Store) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&PaymentIntent{}).
		Where("id = ? AND status NOT IN ?", id, TerminalStatuses).
		Update("status", StatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FinalizeIntent commits the terminal outcome of one processing run:
// status, gateway used and the serialized trace log, in a single update.
func (s *Store) FinalizeIntent(ctx context.Context, id, status, gatewayUsed, traceLog string) error {
	res := s.db.WithContext(ctx).
		Model(&PaymentIntent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"gateway_used": gatewayUsed,
			"trace_log":    traceLog,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finalize intent %s: %w", id, ErrNotFound)
	}
	return nil
}

// ---- routing rules ----

// RulesForMerchant returns the merchant's rules ordered ascending by
// priority, ties broken by insertion order.
func (s *Store) RulesForMerchant(ctx context.Context, merchantID string) ([]RoutingRule, error) {
	var rules []RoutingRule
	err := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("priority asc, created_at asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *RoutingRule) error {
	return s.db.WithContext(ctx).Create(rule).Error
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&RoutingRule{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- gateway configs ----

func (s *Store) GatewayConfigsForMerchant(ctx context.Context, merchantID string) ([]GatewayConfig, error) {
	var configs []GatewayConfig
	err := s.db.WithContext(ctx).Where("merchant_id = ?", merchantID).Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *Store) UpsertGatewayConfig(ctx context.Context, cfg *GatewayConfig) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "gateway_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "api_key", "extra_config"}),
		}).
		Create(cfg).Error
}

// ---- gateway health ----

// UpsertGatewayHealth creates or refreshes the health record for one
// gateway. The simulated-outage flag is deliberately left untouched: it
// belongs to the admin override, not the monitor.
func (s *Store) UpsertGatewayHealth(ctx context.Context, rec *GatewayHealth) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "latency_ms", "message", "last_checked_at"}),
		}).
		Create(rec).Error
}

func (s *Store) ListGatewayHealth(ctx context.Context) ([]GatewayHealth, error) {
	var records []GatewayHealth
	if err := s.db.WithContext(ctx).Order("gateway_name asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SetSimulatedOutage flips the manual outage override for a gateway,
// creating the health row if the monitor has not seen it yet.
func (s *Store) SetSimulatedOutage(ctx context.Context, gatewayName string, outage bool) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_name"}},
			DoUpdates: clause.Assignments(map[string]any{"is_simulated_outage": outage}),
		}).
		Create(&GatewayHealth{
			GatewayName:       gatewayName,
			Status:            StatusHealthyDefault,
			IsSimulatedOutage: outage,
			LastCheckedAt:     time.Now().UTC(),
		}).Error
}

// StatusHealthyDefault is the status a health row starts in before the
// monitor's first sweep.
const StatusHealthyDefault = "healthy"

// ---- merchants ----

func (s *Store) CreateMerchant(ctx context.Context, m *Merchant) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) MerchantByID(ctx context.Context, id string) (*Merchant, error) {
	var m Merchant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) CountMerchants(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Merchant{}).Count(&n).Error
	return n, err
}

func (s *Store) MerchantByAPIKeyHash(ctx context.Context, hash string) (*Merchant, error) {
	var m Merchant
	if err := s.db.WithContext(ctx).Where("api_key_hashed = ?", hash).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}
