// Package downstream provides a gorm-backed agreement system used as the
// saga's downstream collaborator in development and tests.
package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/agreement-orchestrator/internal/domain/agreement"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
)

var (
	ErrNotFound          = errors.New("downstream: agreement not found")
	ErrInvalidTransition = errors.New("downstream: invalid status transition")
	ErrNotEnriched       = errors.New("downstream: agreement not enriched")
	// ErrDispatchUnavailable is the programmed transient dispatch failure.
	ErrDispatchUnavailable = errors.New("downstream: dispatch temporarily unavailable")
	// ErrCancelRejected is the programmed compensation failure.
	ErrCancelRejected = errors.New("downstream: cancellation rejected")
)

const minimumPremium = 500

// Product rates in basis points of the insured sum.
var productRates = map[string]int64{
	"HOME-STD":  50,
	"HOME-PLUS": 65,
}

const defaultRate = 80

// Premium prices a set of coverage lines for product: rate times insured sum
// minus 5% of the deductibles, never below minimumPremium.
func Premium(product string, coverages []agreement.CoverageLine) int64 {
	rate, ok := productRates[strings.ToUpper(strings.TrimSpace(product))]
	if !ok {
		rate = defaultRate
	}
	var insured, deductible int64
	for _, c := range coverages {
		insured += c.InsuredSum
		deductible += c.Deductible
	}
	p := insured*rate/10_000 - deductible*5/100
	if p < minimumPremium {
		return minimumPremium
	}
	return p
}

// Simulator is safe for concurrent use.
type Simulator struct {
	db  *gorm.DB
	log *logger.Logger

	mu               sync.Mutex
	dispatchFailures int
	cancelFailures   int

	newID func() string
	now   func() time.Time
}

// NewSimulator expects db to be migrated already (see data/db.AutoMigrateAll).
func NewSimulator(db *gorm.DB, baseLog *logger.Logger) *Simulator {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Simulator{
		db:    db,
		log:   baseLog.With("service", "DownstreamSimulator"),
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ProgramDispatchFailures makes the next n UpdateStatusToSent calls fail.
func (s *Simulator) ProgramDispatchFailures(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.dispatchFailures = n
	s.mu.Unlock()
	s.log.Info("programmed dispatch failures", "count", n)
}

// ProgramCancelFailures makes the next n CancelActivation calls fail.
func (s *Simulator) ProgramCancelFailures(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.cancelFailures = n
	s.mu.Unlock()
	s.log.Info("programmed cancel failures", "count", n)
}

func (s *Simulator) takeFailure(counter *int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *counter > 0 {
		*counter--
		return true
	}
	return false
}

func (s *Simulator) CreateDraft(ctx context.Context, req agreement.Request) (string, error) {
	coverages, err := json.Marshal(req.Coverages)
	if err != nil {
		return "", fmt.Errorf("downstream: encode coverages: %w", err)
	}
	now := s.now()
	row := &agreement.Record{
		ID:                s.newID(),
		ProductCode:       strings.ToUpper(strings.TrimSpace(req.ProductCode)),
		CustomerReference: strings.TrimSpace(req.CustomerReference),
		Coverages:         datatypes.JSON(coverages),
		Status:            string(agreement.StateDraft),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if !req.StartDate.IsZero() {
		d := datatypes.Date(req.StartDate)
		row.StartDate = &d
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return tx.Create(&agreement.Transition{
			AgreementID: row.ID,
			ToStatus:    row.Status,
			CreatedAt:   now,
		}).Error
	})
	if err != nil {
		return "", fmt.Errorf("downstream: create draft: %w", err)
	}
	return row.ID, nil
}

// EnrichUnderwriting scores the draft. It does not change status.
func (s *Simulator) EnrichUnderwriting(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if row.Status != string(agreement.StateDraft) {
			return fmt.Errorf("%w: enrich in %s", ErrInvalidTransition, row.Status)
		}
		var coverages []agreement.CoverageLine
		if err := json.Unmarshal(row.Coverages, &coverages); err != nil {
			return fmt.Errorf("downstream: decode coverages: %w", err)
		}
		return tx.Model(&agreement.Record{}).Where("id = ?", id).Updates(map[string]interface{}{
			"enriched":   true,
			"risk_score": riskScore(coverages),
			"updated_at": s.now(),
		}).Error
	})
}

func (s *Simulator) PriceOffer(ctx context.Context, id string) (int64, error) {
	var premium int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if !row.Enriched {
			return ErrNotEnriched
		}
		var coverages []agreement.CoverageLine
		if err := json.Unmarshal(row.Coverages, &coverages); err != nil {
			return fmt.Errorf("downstream: decode coverages: %w", err)
		}
		premium = Premium(row.ProductCode, coverages)
		return s.transition(tx, row, agreement.StatePriced, map[string]interface{}{"premium": premium})
	})
	if err != nil {
		return 0, err
	}
	return premium, nil
}

func (s *Simulator) ActivateAgreement(ctx context.Context, id string) error {
	return s.move(ctx, id, agreement.StateActive)
}

func (s *Simulator) UpdateStatusToSent(ctx context.Context, id string) error {
	if s.takeFailure(&s.dispatchFailures) {
		return ErrDispatchUnavailable
	}
	return s.move(ctx, id, agreement.StateSent)
}

func (s *Simulator) CancelActivation(ctx context.Context, id string) error {
	if s.takeFailure(&s.cancelFailures) {
		return ErrCancelRejected
	}
	return s.move(ctx, id, agreement.StateCancelled)
}

func (s *Simulator) GetStatus(ctx context.Context, id string) (agreement.State, bool, error) {
	var row agreement.Record
	err := s.db.WithContext(ctx).Select("status").Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("downstream: get status: %w", err)
	}
	return agreement.State(row.Status), true, nil
}

// CountAgreements returns how many agreements exist in any status.
func (s *Simulator) CountAgreements(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&agreement.Record{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("downstream: count: %w", err)
	}
	return n, nil
}

// History lists the status changes of one agreement, oldest first.
func (s *Simulator) History(ctx context.Context, id string) ([]agreement.Transition, error) {
	var out []agreement.Transition
	err := s.db.WithContext(ctx).Where("agreement_id = ?", id).Order("id asc").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("downstream: history: %w", err)
	}
	return out, nil
}

func (s *Simulator) move(ctx context.Context, id string, to agreement.State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, id)
		if err != nil {
			return err
		}
		return s.transition(tx, row, to, nil)
	})
}

func (s *Simulator) load(tx *gorm.DB, id string) (*agreement.Record, error) {
	var row agreement.Record
	err := tx.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Simulator) transition(tx *gorm.DB, row *agreement.Record, to agreement.State, extra map[string]interface{}) error {
	from := agreement.State(row.Status)
	if !agreement.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := s.now()
	updates := map[string]interface{}{"status": string(to), "updated_at": now}
	for k, v := range extra {
		updates[k] = v
	}
	if err := tx.Model(&agreement.Record{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return err
	}
	return tx.Create(&agreement.Transition{
		AgreementID: row.ID,
		FromStatus:  string(from),
		ToStatus:    string(to),
		CreatedAt:   now,
	}).Error
}

// riskScore is a coarse 1..10 band on total insured sum.
func riskScore(coverages []agreement.CoverageLine) int {
	var insured int64
	for _, c := range coverages {
		insured += c.InsuredSum
	}
	score := int(insured/500_000) + 1
	if score > 10 {
		score = 10
	}
	return score
}
