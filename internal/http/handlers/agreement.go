package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agreement-orchestrator/internal/domain/agreement"
	"github.com/yungbote/agreement-orchestrator/internal/http/response"
	"github.com/yungbote/agreement-orchestrator/internal/platform/apierr"
	"github.com/yungbote/agreement-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/agreement-orchestrator/internal/saga"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplay         = "Idempotent-Replayed"
)

// AgreementService runs the provisioning saga.
type AgreementService interface {
	Execute(ctx context.Context, req agreement.Request, correlationID, idempotencyKey string) (agreement.Result, error)
}

type AgreementHandler struct {
	svc AgreementService
}

func NewAgreementHandler(svc AgreementService) *AgreementHandler {
	return &AgreementHandler{svc: svc}
}

type createAgreementRequest struct {
	ProductCode       string                   `json:"productCode"`
	CustomerReference string                   `json:"customerReference"`
	ContactEmail      string                   `json:"contactEmail"`
	Coverages         []agreement.CoverageLine `json:"coverages"`
	// StartDate is YYYY-MM-DD.
	StartDate string `json:"startDate"`
}

type agreementResponse struct {
	agreement.Response
	ServedFromCache bool `json:"servedFromCache"`
}

func (r createAgreementRequest) toDomain() (agreement.Request, error) {
	out := agreement.Request{
		ProductCode:       strings.TrimSpace(r.ProductCode),
		CustomerReference: strings.TrimSpace(r.CustomerReference),
		ContactEmail:      strings.TrimSpace(r.ContactEmail),
		Coverages:         r.Coverages,
	}
	if out.ProductCode == "" {
		return out, errors.New("productCode is required")
	}
	if len(out.Coverages) == 0 {
		return out, errors.New("at least one coverage is required")
	}
	for i, c := range out.Coverages {
		if strings.TrimSpace(c.Type) == "" {
			return out, fmt.Errorf("coverages[%d].type is required", i)
		}
	}
	if v := strings.TrimSpace(r.StartDate); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return out, fmt.Errorf("startDate must be YYYY-MM-DD: %w", err)
		}
		out.StartDate = d
	}
	return out, nil
}

// POST /api/agreements
func (h *AgreementHandler) CreateAgreement(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if key == "" {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeMissingIdempotencyKey,
			errors.New("Idempotency-Key header is required"))
		return
	}

	var body createAgreementRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}

	ctx := c.Request.Context()
	res, err := h.svc.Execute(ctx, req, ctxutil.CorrelationID(ctx), key)
	if err != nil {
		response.RespondAPIError(c, mapSagaError(err))
		return
	}

	status := http.StatusCreated
	if res.ServedFromCache {
		status = http.StatusOK
		c.Header(headerReplay, "true")
	}
	response.RespondJSON(c, status, agreementResponse{Response: res.Response, ServedFromCache: res.ServedFromCache})
}

func mapSagaError(err error) *apierr.Error {
	if errors.Is(err, saga.ErrMissingIdempotencyKey) {
		return apierr.BadRequest(apierr.CodeMissingIdempotencyKey, err)
	}
	switch saga.KindOf(err) {
	case saga.KindConflict:
		return apierr.New(http.StatusConflict, apierr.CodeIdempotencyConflict, err)
	case saga.KindCompensated:
		return apierr.New(http.StatusBadGateway, apierr.CodeSagaCompensated, err)
	case saga.KindMismatch:
		return apierr.New(http.StatusBadGateway, apierr.CodeStateMismatch, err)
	default:
		return apierr.New(http.StatusBadGateway, apierr.CodeSagaFailed, err)
	}
}
