package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/agreement-orchestrator/internal/config"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
)

const homeStdBody = `{"productCode":"HOME-STD","coverages":[{"type":"BUILDING","insuredSum":2000000,"deductible":10000}]}`

type agreementBody struct {
	AgreementID     string `json:"agreementId"`
	Status          string `json:"status"`
	Premium         int64  `json:"premium"`
	CorrelationID   string `json:"correlationId"`
	ServedFromCache bool   `json:"servedFromCache"`
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Env = "test"
	cfg.Dispatch.InitialDelay = config.Duration{Duration: time.Millisecond}
	cfg.Dispatch.Jitter = false
	cfg.Downstream.LogLevel = "silent"
	cfg.Metrics.Enabled = true
	cfg.EnableTestControls = true

	a, err := NewWithConfig(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func post(t *testing.T, a *App, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func decodeAgreement(t *testing.T, rec *httptest.ResponseRecorder) agreementBody {
	t.Helper()
	var out agreementBody
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v (body=%s)", err, rec.Body.String())
	}
	return out
}

func countAgreements(t *testing.T, a *App) int64 {
	t.Helper()
	n, err := a.Services.Downstream.CountAgreements(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestHomeStandardScenario(t *testing.T) {
	a := newTestApp(t)

	first := post(t, a, "/api/agreements", "k1", homeStdBody)
	if first.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", first.Code, http.StatusCreated, first.Body.String())
	}
	created := decodeAgreement(t, first)
	if created.Status != "SENT" {
		t.Fatalf("status: got=%q want=SENT", created.Status)
	}
	if created.Premium < 5000 || created.Premium > 20000 {
		t.Fatalf("premium out of range: %d", created.Premium)
	}
	if created.ServedFromCache {
		t.Fatalf("first call must not be served from cache")
	}

	second := post(t, a, "/api/agreements", "k1", homeStdBody)
	if second.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", second.Code, http.StatusOK)
	}
	replayed := decodeAgreement(t, second)
	if replayed.AgreementID != created.AgreementID || replayed.Premium != created.Premium || !replayed.ServedFromCache {
		t.Fatalf("replay mismatch: first=%+v second=%+v", created, replayed)
	}

	changed := strings.Replace(homeStdBody, "HOME-STD", "HOME-PLUS", 1)
	third := post(t, a, "/api/agreements", "k1", changed)
	if third.Code != http.StatusConflict {
		t.Fatalf("unexpected status: got=%d want=%d", third.Code, http.StatusConflict)
	}
	if n := countAgreements(t, a); n != 1 {
		t.Fatalf("agreements: got=%d want=1", n)
	}
}

func TestDispatchFailuresThroughTestControls(t *testing.T) {
	a := newTestApp(t)

	if rec := post(t, a, "/api/test/dispatch-failures", "", `{"count":2}`); rec.Code != http.StatusOK {
		t.Fatalf("program failures: got=%d want=%d", rec.Code, http.StatusOK)
	}
	rec := post(t, a, "/api/agreements", "recover", homeStdBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	if rec := post(t, a, "/api/test/dispatch-failures", "", `{"count":3}`); rec.Code != http.StatusOK {
		t.Fatalf("program failures: got=%d want=%d", rec.Code, http.StatusOK)
	}
	rec = post(t, a, "/api/agreements", "exhaust", homeStdBody)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusBadGateway)
	}
	if !strings.Contains(rec.Body.String(), "saga_compensated") {
		t.Fatalf("expected compensated code, body=%s", rec.Body.String())
	}
	if rec.Header().Get("X-Correlation-Id") == "" {
		t.Fatalf("expected correlation id header on failure")
	}
}

func TestAuditEndpointReturnsTrail(t *testing.T) {
	a := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/api/agreements", strings.NewReader(homeStdBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "audit-1")
	req.Header.Set("X-Correlation-Id", "corr-audit")
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusCreated)
	}

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit?correlationId=corr-audit", nil))
	var out struct {
		Events []struct {
			Event string `json:"event"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Events) == 0 || out.Events[0].Event != "start" || out.Events[len(out.Events)-1].Event != "end" {
		t.Fatalf("unexpected trail: %+v", out.Events)
	}
}

func TestConcurrentSameKeyOverHTTP(t *testing.T) {
	a := newTestApp(t)
	var created, replayed atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			rec := post(t, a, "/api/agreements", "shared-key", homeStdBody)
			switch rec.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusOK:
				replayed.Add(1)
			default:
				return fmt.Errorf("unexpected status %d: %s", rec.Code, rec.Body.String())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if created.Load() != 1 || replayed.Load() != 7 {
		t.Fatalf("created=%d replayed=%d", created.Load(), replayed.Load())
	}
	if n := countAgreements(t, a); n != 1 {
		t.Fatalf("agreements: got=%d want=1", n)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got=%d %q", rec.Code, rec.Body.String())
	}

	post(t, a, "/api/agreements", "m1", homeStdBody)
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `ao_saga_outcomes_total{outcome="success"} 1`) {
		t.Fatalf("metrics missing saga outcome:\n%s", rec.Body.String())
	}
}
