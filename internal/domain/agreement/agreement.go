package agreement

import (
	"strings"
	"time"
)

// State is the lifecycle position of an agreement on the downstream system.
type State string

const (
	StateDraft     State = "DRAFT"
	StatePriced    State = "PRICED"
	StateActive    State = "ACTIVE"
	StateSent      State = "SENT"
	StateCancelled State = "CANCELLED"
)

var stateOrder = map[State]int{
	StateDraft:  1,
	StatePriced: 2,
	StateActive: 3,
	StateSent:   4,
}

// CanTransition reports whether from -> to is a legal move. Progression is
// forward-only; CANCELLED is reachable only from PRICED or ACTIVE.
func CanTransition(from, to State) bool {
	if to == StateCancelled {
		return from == StatePriced || from == StateActive
	}
	fromRank, okFrom := stateOrder[from]
	toRank, okTo := stateOrder[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank == fromRank+1
}

func (s State) Valid() bool {
	if s == StateCancelled {
		return true
	}
	_, ok := stateOrder[s]
	return ok
}

type CoverageLine struct {
	Type       string `json:"type"`
	InsuredSum int64  `json:"insuredSum"`
	Deductible int64  `json:"deductible"`
}

// Request is the client payload for provisioning one agreement. Treat it as
// immutable once submitted; use Clone before handing it to another owner.
type Request struct {
	ProductCode       string         `json:"productCode"`
	CustomerReference string         `json:"customerReference"`
	ContactEmail      string         `json:"contactEmail,omitempty"`
	Coverages         []CoverageLine `json:"coverages"`
	StartDate         time.Time      `json:"startDate"`
}

func (r Request) Clone() Request {
	out := r
	out.Coverages = append([]CoverageLine(nil), r.Coverages...)
	return out
}

// Recipient is the welcome-letter address: the contact email when present,
// the customer reference otherwise.
func (r Request) Recipient() string {
	if v := strings.TrimSpace(r.ContactEmail); v != "" {
		return v
	}
	return strings.TrimSpace(r.CustomerReference)
}

// TotalInsuredSum sums the insured sum across coverage lines.
func (r Request) TotalInsuredSum() int64 {
	var total int64
	for _, c := range r.Coverages {
		total += c.InsuredSum
	}
	return total
}

// Response is the outcome returned to the caller and cached per idempotency key.
type Response struct {
	AgreementID   string `json:"agreementId"`
	Status        State  `json:"status"`
	Premium       int64  `json:"premium"`
	CorrelationID string `json:"correlationId"`
}

// Result lets the transport edge choose between "created" and "replayed"
// without re-deriving state.
type Result struct {
	Response        Response
	ServedFromCache bool
}
