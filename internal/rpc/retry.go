package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/internal/common"
	"github.com/thirdweb-dev/txconflict/internal/metrics"
)

const rateLimitCode = 429

var rateLimitMessage = regexp.MustCompile(`(?i)rate limit|too many requests`)

// ErrMalformedResponse is returned by the transport side when a response has no usable result.
var ErrMalformedResponse = errors.New("response is missing the result field")

// RetryPolicy bounds how throttled calls are retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxBackoff time.Duration
	MaxJitter  time.Duration
}

// Backoff is min(BaseDelay * 2^(attempt-1), MaxBackoff), without jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	wait := p.BaseDelay * time.Duration(1<<uint(shift))
	if wait < p.BaseDelay || (p.MaxBackoff > 0 && wait > p.MaxBackoff) {
		wait = p.MaxBackoff
	}
	return wait
}

// Wait is the backoff for an attempt plus a random jitter in [0, MaxJitter].
func (p RetryPolicy) Wait(attempt int) time.Duration {
	wait := p.Backoff(attempt)
	if p.MaxJitter > 0 {
		wait += rand.N(p.MaxJitter + 1)
	}
	return wait
}

// RequestFailedError is returned once a call cannot be completed.
type RequestFailedError struct {
	Method   string
	Attempts int
	Err      error
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Method, e.Attempts, e.Err)
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether an error is a throttling signal from the provider.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var httpErr gethRpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var rpcErr gethRpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rateLimitCode {
		return true
	}
	return rateLimitMessage.MatchString(err.Error())
}

// IsMalformedResponse reports whether a response lacked its result.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse) || errors.Is(err, gethRpc.ErrNoResult)
}

func retryReason(err error) (string, bool) {
	switch {
	case IsRateLimited(err):
		return "rate_limited", true
	case IsMalformedResponse(err):
		return "malformed_response", true
	default:
		return "", false
	}
}

// policyBackOff feeds RetryPolicy delays to the backoff package, one attempt per NextBackOff call.
type policyBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.policy.Wait(b.attempt)
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
}

// NewBackOff returns the policy as a backoff.BackOff bounded by MaxRetries and ctx.
func (p RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOff {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(&policyBackOff{policy: p}, uint64(maxRetries)), ctx)
}

// Fetch performs one JSON-RPC call. Every dispatch, retries included, waits on the limiter first.
func (c *Client) Fetch(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	attempts := 0
	operation := func() (json.RawMessage, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		attempts++

		start := time.Now()
		var raw json.RawMessage
		err := c.caller.CallContext(ctx, &raw, method, params...)
		metrics.RPCRequests.WithLabelValues(method).Inc()
		metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err == nil && !common.HasField(raw) {
			err = ErrMalformedResponse
		}
		if err == nil {
			return raw, nil
		}
		if _, retryable := retryReason(err); !retryable {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	notify := func(err error, wait time.Duration) {
		reason, _ := retryReason(err)
		metrics.RPCRetries.WithLabelValues(method, reason).Inc()
		log.Debug().Err(err).Str("method", method).Int("attempt", attempts).Int64("wait_ms", wait.Milliseconds()).Msgf("Retrying %s after %s", method, reason)
	}

	raw, err := backoff.RetryNotifyWithData(operation, c.policy.NewBackOff(ctx), notify)
	if err != nil {
		if ctx.Err() == nil {
			metrics.RPCRequestFailures.WithLabelValues(method).Inc()
		}
		return nil, &RequestFailedError{Method: method, Attempts: attempts, Err: err}
	}
	return raw, nil
}
