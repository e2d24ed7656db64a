package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCaller struct {
	mu        sync.Mutex
	responses []func(result interface{}) error
	calls     int
	times     []time.Time
}

func (s *scriptedCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times = append(s.times, time.Now())
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx](result)
}

func respond(payload string) func(interface{}) error {
	return func(result interface{}) error {
		*(result.(*json.RawMessage)) = json.RawMessage(payload)
		return nil
	}
}

func fail(err error) func(interface{}) error {
	return func(interface{}) error { return err }
}

func testPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  10 * time.Millisecond,
		MaxBackoff: 100 * time.Millisecond,
		MaxJitter:  0,
	}
}

func TestBackoff(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 2 * time.Second, MaxBackoff: 60 * time.Second}

	assert.Equal(t, 2*time.Second, policy.Backoff(1))
	assert.Equal(t, 4*time.Second, policy.Backoff(2))
	assert.Equal(t, 32*time.Second, policy.Backoff(5))
	assert.Equal(t, 60*time.Second, policy.Backoff(6))
	assert.Equal(t, 60*time.Second, policy.Backoff(200))
}

func TestWaitStaysWithinJitterWindow(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxBackoff: time.Second, MaxJitter: 5 * time.Millisecond}
	for i := 0; i < 50; i++ {
		wait := policy.Wait(2)
		assert.GreaterOrEqual(t, wait, 20*time.Millisecond)
		assert.LessOrEqual(t, wait, 25*time.Millisecond)
	}
}

func TestNewBackOff_FollowsPolicyUntilRetriesRunOut(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxBackoff: 5 * time.Second}
	b := policy.NewBackOff(context.Background())
	b.Reset()

	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, 5*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 2*time.Second, b.NextBackOff())
}

func TestNewBackOff_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := RetryPolicy{MaxRetries: 10, BaseDelay: time.Second, MaxBackoff: time.Minute}.NewBackOff(ctx)
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestFetch_RetriesRateLimitedCalls(t *testing.T) {
	caller := &scriptedCaller{responses: []func(interface{}) error{
		fail(gethRpc.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"}),
		fail(gethRpc.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"}),
		fail(gethRpc.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"}),
		respond(`"0x10"`),
	}}
	policy := testPolicy(10)
	client := NewClient(caller, nil, policy)

	start := time.Now()
	raw, err := client.Fetch(context.Background(), "eth_blockNumber")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, `"0x10"`, string(raw))
	assert.Equal(t, 4, caller.calls)
	assert.GreaterOrEqual(t, elapsed, policy.Backoff(1)+policy.Backoff(2)+policy.Backoff(3))
}

func TestFetch_RetriesRateLimitMessages(t *testing.T) {
	caller := &scriptedCaller{responses: []func(interface{}) error{
		fail(errors.New("Your app has exceeded its compute units per second capacity. Rate limit reached")),
		respond(`"0x1"`),
	}}
	client := NewClient(caller, nil, testPolicy(3))

	_, err := client.Fetch(context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.Equal(t, 2, caller.calls)
}

func TestFetch_RetriesMalformedResponses(t *testing.T) {
	caller := &scriptedCaller{responses: []func(interface{}) error{
		respond(`null`),
		fail(gethRpc.ErrNoResult),
		respond(`{"hash":"0xabc"}`),
	}}
	client := NewClient(caller, nil, testPolicy(5))

	raw, err := client.Fetch(context.Background(), "eth_getTransactionReceipt", "0xabc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hash":"0xabc"}`, string(raw))
	assert.Equal(t, 3, caller.calls)
}

func TestFetch_NonRetryableErrorFailsImmediately(t *testing.T) {
	cause := errors.New("execution reverted")
	caller := &scriptedCaller{responses: []func(interface{}) error{fail(cause)}}
	client := NewClient(caller, nil, testPolicy(10))

	_, err := client.Fetch(context.Background(), "debug_traceTransaction", "0x1")
	require.Error(t, err)

	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "debug_traceTransaction", failed.Method)
	assert.Equal(t, 1, failed.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, caller.calls)
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	caller := &scriptedCaller{responses: []func(interface{}) error{
		fail(gethRpc.HTTPError{StatusCode: http.StatusTooManyRequests}),
	}}
	client := NewClient(caller, nil, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxBackoff: 2 * time.Millisecond})

	_, err := client.Fetch(context.Background(), "eth_blockNumber")

	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 4, failed.Attempts)
	assert.Equal(t, 4, caller.calls)
	assert.True(t, IsRateLimited(failed.Err))
}

func TestFetch_CancelledContextAbortsBackoff(t *testing.T) {
	caller := &scriptedCaller{responses: []func(interface{}) error{
		fail(gethRpc.HTTPError{StatusCode: http.StatusTooManyRequests}),
	}}
	client := NewClient(caller, nil, RetryPolicy{MaxRetries: 10, BaseDelay: time.Minute, MaxBackoff: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Fetch(ctx, "eth_blockNumber")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetch_LimiterSpacesRetries(t *testing.T) {
	caller := &scriptedCaller{responses: []func(interface{}) error{
		respond(`"0x1"`),
	}}
	client := NewClient(caller, NewIntervalLimiter(5), testPolicy(0))

	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background(), "eth_blockNumber")
		require.NoError(t, err)
	}

	require.Len(t, caller.times, 3)
	for i := 1; i < len(caller.times); i++ {
		gap := caller.times[i].Sub(caller.times[i-1])
		assert.GreaterOrEqual(t, gap, 190*time.Millisecond)
	}
}

func TestFetch_HTTPTooManyRequestsOverTransport(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()

		if n <= 2 {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"0x2a"}`))
	}))
	defer server.Close()

	transport, err := gethRpc.DialHTTP(server.URL)
	require.NoError(t, err)
	defer transport.Close()

	client := NewClient(transport, nil, testPolicy(5))
	number, err := client.GetLatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), number)
	assert.Equal(t, 3, requests)
}

func TestFetch_RateLimitErrorObjectOverTransport(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()

		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if n <= 2 {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":429,"message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"0x2a"}`))
	}))
	defer server.Close()

	transport, err := gethRpc.DialHTTP(server.URL)
	require.NoError(t, err)
	defer transport.Close()

	client := NewClient(transport, nil, testPolicy(5))
	number, err := client.GetLatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), number)
	assert.Equal(t, 3, requests)
}

func TestFetch_ErrorObjectWithOtherCodeIsNotRetried(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()

		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"the method debug_traceTransaction does not exist"}}`))
	}))
	defer server.Close()

	transport, err := gethRpc.DialHTTP(server.URL)
	require.NoError(t, err)
	defer transport.Close()

	client := NewClient(transport, nil, testPolicy(5))
	_, err = client.Fetch(context.Background(), "debug_traceTransaction", "0x1")

	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, failed.Attempts)
	assert.Equal(t, 1, requests)
}

type rateLimitedRPCError struct{}

func (rateLimitedRPCError) Error() string { return "slow down" }
func (rateLimitedRPCError) ErrorCode() int { return 429 }

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(rateLimitedRPCError{}))
	assert.True(t, IsRateLimited(gethRpc.HTTPError{StatusCode: 429}))
	assert.True(t, IsRateLimited(errors.New("too many requests")))
	assert.False(t, IsRateLimited(gethRpc.HTTPError{StatusCode: 500}))
	assert.False(t, IsRateLimited(errors.New("header not found")))
	assert.False(t, IsRateLimited(nil))
}
