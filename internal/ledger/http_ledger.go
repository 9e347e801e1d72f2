package ledger

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.opencensus.io/trace"
)

// Remote error codes returned in 409 bodies.
const (
	remoteAlreadyReleased   = "already_released"
	remoteAlreadyRefunded   = "already_refunded"
	remoteRecipientMismatch = "recipient_mismatch"
)

// HTTPLedger releases escrows through a remote custody service:
//
//	POST {base}/escrows/{id}/release {"recipient": "..."}
//
// 200 returns a Receipt, 404 means unknown escrow, 409 carries {"error": code}. Any 5xx, transport
// failure or timeout is reported as ErrLedgerUnavailable.
type HTTPLedger struct {
	base    string
	timeout time.Duration
	client  *fasthttp.Client
}

type releaseRequest struct {
	Recipient string `json:"recipient"`
}

type remoteError struct {
	Error string `json:"error"`
}

// NewHTTPLedger returns a client for the custody service at base. timeout applies when the
// context has no deadline.
func NewHTTPLedger(base string, timeout time.Duration) *HTTPLedger {
	return &HTTPLedger{
		base:    strings.TrimSuffix(base, "/"),
		timeout: timeout,
		client: &fasthttp.Client{
			Name:                "settlementd",
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// Release implements Ledger.
func (l *HTTPLedger) Release(ctx context.Context, escrowID, recipient string) (*Receipt, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.HTTPLedger.Release")
	defer span.End()

	if !ValidID(escrowID) {
		return nil, errors.Wrapf(ErrEscrowNotFound, "invalid id %q", escrowID)
	}

	timeout := l.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil || timeout <= 0 {
		return nil, unavailable(context.DeadlineExceeded, "release")
	}

	payload, err := sonic.Marshal(releaseRequest{Recipient: recipient})
	if err != nil {
		return nil, errors.Wrap(err, "marshal release")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(l.base + "/escrows/" + url.PathEscape(escrowID) + "/release")
	req.Header.SetMethod(http.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	if err := l.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, unavailable(err, "release request")
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusOK:
		var receipt Receipt
		if err := sonic.Unmarshal(resp.Body(), &receipt); err != nil {
			return nil, errors.Wrap(err, "unmarshal receipt")
		}
		return &receipt, nil

	case status == http.StatusNotFound:
		return nil, errors.Wrap(ErrEscrowNotFound, escrowID)

	case status == http.StatusConflict:
		var re remoteError
		_ = sonic.Unmarshal(resp.Body(), &re)
		switch re.Error {
		case remoteRecipientMismatch:
			return nil, errors.Wrap(ErrRecipientMismatch, escrowID)
		case remoteAlreadyRefunded:
			return nil, errors.Wrap(ErrAlreadyRefunded, escrowID)
		default:
			return nil, errors.Wrap(ErrAlreadyReleased, escrowID)
		}

	case status >= 500 || status == http.StatusTooManyRequests:
		return nil, errors.Wrapf(ErrLedgerUnavailable, "status %d", status)
	}

	return nil, errors.Errorf("unexpected ledger status %d", status)
}
