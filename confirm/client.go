// Package confirm implements the outbound side of the confirmable action
// protocol: the call to the external confirmation endpoint and the
// mapping of its responses onto protocol decisions.
//
// The endpoint contract per event type and action:
//
//	POST /events/{type}/actions/{ACTION}
//	200 with a type-correct confirmation payload -> synchronous accept
//	400                                          -> synchronous reject
//	202                                          -> asynchronous pending
//	anything else, or a timeout                  -> transport error
//
// A transport error means nothing may be persisted; the caller surfaces a
// retryable error and a later retry with the same transaction ID is safe.
package confirm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lirancohen/vitals/action"
	"github.com/lirancohen/vitals/retry"
)

// DefaultTimeout bounds one confirmation attempt. A timeout is treated
// identically to a 5xx: transport error, nothing persisted.
const DefaultTimeout = 30 * time.Second

// Decision is the confirmation endpoint's verdict on a request.
type Decision string

const (
	// DecisionAccepted means the action takes effect immediately.
	DecisionAccepted Decision = "accepted"

	// DecisionRejected means the action is recorded as rejected.
	DecisionRejected Decision = "rejected"

	// DecisionPending means the endpoint accepted the request for later
	// processing; a separate accept/reject call resolves it.
	DecisionPending Decision = "pending"
)

// Common errors returned by Confirm.
var (
	// ErrTransport indicates the endpoint failed or timed out. Nothing
	// was persisted; the same call may be retried.
	ErrTransport = errors.New("confirmation transport error")

	// ErrInvalidPayload indicates a 200 response whose confirmation
	// payload failed its shape check. Treated as a hard failure: nothing
	// is persisted.
	ErrInvalidPayload = errors.New("invalid confirmation payload")
)

// TransportError provides details about a failed confirmation call.
type TransportError struct {
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("confirmation call failed: %v", e.Err)
	}
	return fmt.Sprintf("confirmation call failed: unexpected status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return ErrTransport
}

// Request is the body sent to the confirmation endpoint.
type Request struct {
	ActionID    string             `json:"actionId"`
	Declaration action.Declaration `json:"declaration,omitempty"`
	Annotation  action.Annotation  `json:"annotation,omitempty"`
}

// Outcome is a completed confirmation decision. Payload is only set for
// DecisionAccepted.
type Outcome struct {
	Decision Decision
	Payload  map[string]any
}

// Confirmer decides the initial status of a confirmable action.
type Confirmer interface {
	Confirm(ctx context.Context, eventType action.EventType, actionType action.Type, req Request) (Outcome, error)
}

// Client calls the external confirmation endpoint over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	policy  *retry.Policy
}

// NewClient creates a confirmation client for the given base URL.
// If httpClient is nil, a client with DefaultTimeout is used. If policy
// is nil, transport errors are not retried in-call (retry.NoRetry); the
// external endpoint is expected to be idempotent per action ID, so a
// bounded policy such as retry.Default is safe to supply.
func NewClient(baseURL string, httpClient *http.Client, policy *retry.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if policy == nil {
		policy = retry.NoRetry()
	}
	return &Client{baseURL: baseURL, http: httpClient, policy: policy}
}

// Confirm posts the request and maps the response onto a Decision.
// Transport errors are retried per the client's policy before being
// returned; any returned error means nothing may be persisted.
func (c *Client) Confirm(ctx context.Context, eventType action.EventType, actionType action.Type, req Request) (Outcome, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		outcome, err := c.confirmOnce(ctx, eventType, actionType, req)
		if err == nil || !errors.Is(err, ErrTransport) {
			return outcome, err
		}
		lastErr = err
		if !c.policy.ShouldRetry(attempt, err) {
			return Outcome{}, lastErr
		}
		if err := c.policy.Sleep(ctx, attempt); err != nil {
			return Outcome{}, lastErr
		}
	}
}

func (c *Client) confirmOnce(ctx context.Context, eventType action.EventType, actionType action.Type, req Request) (Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode confirmation request: %w", err)
	}

	url := fmt.Sprintf("%s/events/%s/actions/%s", c.baseURL, eventType, actionType)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build confirmation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Outcome{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return Outcome{}, &TransportError{Err: err}
		}
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if err := ValidatePayload(actionType, payload); err != nil {
			return Outcome{}, err
		}
		return Outcome{Decision: DecisionAccepted, Payload: payload}, nil

	case http.StatusBadRequest:
		return Outcome{Decision: DecisionRejected}, nil

	case http.StatusAccepted:
		return Outcome{Decision: DecisionPending}, nil

	default:
		return Outcome{}, &TransportError{StatusCode: resp.StatusCode}
	}
}

// ValidatePayload checks a synchronous confirmation payload for shape.
// A payload that fails this check is a hard failure: the action is not
// persisted at all, not recorded as rejected.
func ValidatePayload(actionType action.Type, payload map[string]any) error {
	switch actionType {
	case action.TypeRegister:
		n, ok := payload["registrationNumber"].(string)
		if !ok || n == "" {
			return fmt.Errorf("%w: registrationNumber must be a non-empty string", ErrInvalidPayload)
		}
	}
	return nil
}
