package saga

import (
	"context"

	"github.com/yungbote/agreement-orchestrator/internal/domain/agreement"
)

// Downstream is the agreement system the saga drives. Implementations must
// be safe for concurrent use across different agreement ids.
type Downstream interface {
	CreateDraft(ctx context.Context, req agreement.Request) (string, error)
	EnrichUnderwriting(ctx context.Context, id string) error
	PriceOffer(ctx context.Context, id string) (int64, error)
	ActivateAgreement(ctx context.Context, id string) error
	// UpdateStatusToSent may fail transiently.
	UpdateStatusToSent(ctx context.Context, id string) error
	CancelActivation(ctx context.Context, id string) error
	// GetStatus reports false when the agreement is unknown.
	GetStatus(ctx context.Context, id string) (agreement.State, bool, error)
}

// Notifier delivers the welcome letter. It reports failure by returning
// false and must not panic, though the engine tolerates it.
type Notifier interface {
	SendWelcomeLetter(ctx context.Context, agreementID, recipient string) bool
}
