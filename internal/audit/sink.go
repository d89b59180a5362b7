package audit

import (
	"sync"
	"time"

	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
)

// Event labels recorded by the orchestration engine.
const (
	EventStart              = "start"
	EventDraftCreated       = "draft-created"
	EventEnriched           = "enriched"
	EventPriced             = "priced"
	EventActivated          = "activated"
	EventSent               = "sent"
	EventSentFailed         = "sent-failed"
	EventCompensated        = "compensated"
	EventCompensationFailed = "compensation-failed"
	EventLetterSent         = "letter-sent"
	EventLetterFailed       = "letter-failed"
	EventIdempotencyHit     = "idempotency-hit"
	EventConflict           = "conflict"
	EventFailed             = "failed"
	EventEnd                = "end"
)

type Event struct {
	CorrelationID string    `json:"correlationId"`
	AgreementID   string    `json:"agreementId,omitempty"`
	Event         string    `json:"event"`
	Timestamp     time.Time `json:"timestamp"`
}

// Sink is an append-only, in-memory audit trail shared by all sagas.
type Sink struct {
	mu     sync.Mutex
	events []Event
	log    *logger.Logger
	now    func() time.Time
}

func NewSink(log *logger.Logger) *Sink {
	if log == nil {
		log = logger.NewNop()
	}
	return &Sink{log: log.With("service", "AuditSink"), now: time.Now}
}

func (s *Sink) Append(correlationID, agreementID, event string) {
	ev := Event{CorrelationID: correlationID, AgreementID: agreementID, Event: event}
	s.mu.Lock()
	ev.Timestamp = s.now()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.log.Debug("audit", "correlation_id", correlationID, "agreement_id", agreementID, "event", event)
}

// Snapshot returns a copy of every event in append order.
func (s *Sink) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Sink) ForCorrelation(correlationID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.CorrelationID == correlationID {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
