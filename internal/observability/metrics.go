package observability

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// Metrics holds the process counters exposed on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	apiRequests    *CounterVec
	apiLatency     *HistogramVec
	apiInflight    *Gauge
	sagaOutcomes   *CounterVec
	sagaDuration   *HistogramVec
	sagaSteps      *CounterVec
	dispatchTries  *CounterVec
	idempotency    *CounterVec
	letters        *CounterVec
	compensations  *CounterVec
	idempotencyLen *Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("ao_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"ao_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("ao_api_inflight_requests", "In-flight API requests."),
		sagaOutcomes: NewCounterVec("ao_saga_outcomes_total", "Saga executions by outcome.", []string{"outcome"}),
		sagaDuration: NewHistogramVec(
			"ao_saga_duration_seconds",
			"Saga wall time in seconds by outcome.",
			[]string{"outcome"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		sagaSteps:      NewCounterVec("ao_saga_steps_total", "Saga step results by step/status.", []string{"step", "status"}),
		dispatchTries:  NewCounterVec("ao_dispatch_attempts_total", "Critical dispatch attempts by result.", []string{"result"}),
		idempotency:    NewCounterVec("ao_idempotency_decisions_total", "Idempotency gate decisions.", []string{"decision"}),
		letters:        NewCounterVec("ao_welcome_letters_total", "Welcome letter deliveries by result.", []string{"result"}),
		compensations:  NewCounterVec("ao_compensations_total", "Compensation attempts by result.", []string{"result"}),
		idempotencyLen: NewGauge("ao_idempotency_records", "Cached idempotency records."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.sagaOutcomes, m.sagaDuration, m.sagaSteps,
		m.dispatchTries, m.idempotency, m.letters,
		m.compensations, m.idempotencyLen,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	code := strconv.Itoa(status)
	m.apiRequests.Inc(method, route, code)
	m.apiLatency.Observe(dur.Seconds(), method, route, code)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveSaga(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.sagaOutcomes.Inc(outcome)
	m.sagaDuration.Observe(dur.Seconds(), outcome)
}

func (m *Metrics) ObserveStep(step, status string) {
	if m == nil {
		return
	}
	m.sagaSteps.Inc(step, status)
}

func (m *Metrics) ObserveDispatchAttempt(ok bool) {
	if m == nil {
		return
	}
	m.dispatchTries.Inc(resultLabel(ok))
}

func (m *Metrics) ObserveIdempotency(decision string, records int) {
	if m == nil {
		return
	}
	m.idempotency.Inc(decision)
	m.idempotencyLen.Set(float64(records))
}

func (m *Metrics) ObserveLetter(ok bool) {
	if m == nil {
		return
	}
	m.letters.Inc(resultLabel(ok))
}

func (m *Metrics) ObserveCompensation(ok bool) {
	if m == nil {
		return
	}
	m.compensations.Inc(resultLabel(ok))
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
