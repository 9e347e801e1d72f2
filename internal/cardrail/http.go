package cardrail

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

// HTTPRail captures charges through a card network's REST API:
//
//	POST {base}/v1/charges
//
// 200 and 201 return the charge, 402 means declined.
type HTTPRail struct {
	client *resty.Client
}

type railError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHTTPRail returns a rail client authenticating with apiKey.
func NewHTTPRail(baseURL, apiKey string, timeout time.Duration) *HTTPRail {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)

	return &HTTPRail{client: client}
}

// Capture implements Rail.
func (h *HTTPRail) Capture(ctx context.Context, req ChargeRequest) (*Charge, error) {
	ctx, span := trace.StartSpan(ctx, "internal.cardrail.HTTPRail.Capture")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		charge  Charge
		failure railError
	)

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.Reference).
		SetBody(req).
		SetResult(&charge).
		SetError(&failure).
		Post("/v1/charges")
	if err != nil {
		return nil, errors.Wrap(ErrRailUnavailable, err.Error())
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusOK || status == http.StatusCreated:
		return &charge, nil

	case status == http.StatusPaymentRequired:
		logger.NewLoggerFromContext(ctx).Warn("charge declined",
			zap.String("reference", req.Reference), zap.String("code", failure.Code))
		return nil, errors.Wrapf(ErrDeclined, "%s %s", failure.Code, failure.Message)

	case status >= 500:
		return nil, errors.Wrapf(ErrRailUnavailable, "status %d", status)

	default:
		return nil, errors.Wrapf(ErrInvalidCharge, "status %d %s", status, failure.Message)
	}
}
