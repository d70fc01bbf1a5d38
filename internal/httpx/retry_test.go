package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

// statusSequence answers with codes[i] on the i-th call and the last code afterwards.
// The body echoes the call number.
func statusSequence(t *testing.T, codes ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := int(atomic.AddInt32(&calls, 1))
		idx := attempt - 1
		if idx >= len(codes) {
			idx = len(codes) - 1
		}
		w.WriteHeader(codes[idx])
		_, _ = io.WriteString(w, `{"attempt":`+strconv.Itoa(attempt)+`}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func getReq(url string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDoWithRetry_FirstAttemptOK(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusOK)

	resp, body, err := DoWithRetry(context.Background(), srv.Client(), getReq(srv.URL), fastRetry(3))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"attempt":1}`, string(body))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestDoWithRetry_BuildRequestError(t *testing.T) {
	boom := errors.New("bad request template")
	_, _, err := DoWithRetry(context.Background(), http.DefaultClient, func(context.Context) (*http.Request, error) {
		return nil, boom
	}, fastRetry(3))
	assert.ErrorIs(t, err, boom)
}

func TestDoWithRetry_RetriesServerErrors(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK)

	_, body, err := DoWithRetry(context.Background(), srv.Client(), getReq(srv.URL), fastRetry(4))
	require.NoError(t, err)
	assert.JSONEq(t, `{"attempt":3}`, string(body))
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestDoWithRetry_RetriesTooManyRequests(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusTooManyRequests, http.StatusOK)

	_, _, err := DoWithRetry(context.Background(), srv.Client(), getReq(srv.URL), fastRetry(2))
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestDoWithRetry_ClientErrorIsFinal(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusForbidden)

	resp, _, err := DoWithRetry(context.Background(), srv.Client(), getReq(srv.URL), fastRetry(4))
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusForbidden, herr.StatusCode)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestDoWithRetry_NoRetryStopsAtFirstFailure(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusInternalServerError, http.StatusOK)

	_, _, err := DoWithRetry(context.Background(), srv.Client(), getReq(srv.URL), NoRetry())
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusInternalServerError, herr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestDoWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusBadGateway)

	_, body, err := DoWithRetry(context.Background(), srv.Client(), getReq(srv.URL+"?wstoken=abc"), fastRetry(3))
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusBadGateway, herr.StatusCode)
	assert.NotContains(t, herr.URL, "abc")
	assert.JSONEq(t, `{"attempt":3}`, string(body))
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestDoWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusServiceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.BaseDelay = time.Second
	cfg.MaxDelay = time.Second
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err := DoWithRetry(ctx, srv.Client(), getReq(srv.URL), cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestDoWithRetry_ZeroConfigMeansOneAttempt(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusInternalServerError)

	_, _, err := DoWithRetry(context.Background(), srv.Client(), getReq(srv.URL), RetryConfig{})
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestSleepBackoff(t *testing.T) {
	start := time.Now()
	require.NoError(t, sleepBackoff(context.Background(), 1, time.Millisecond, time.Millisecond, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepBackoff(ctx, 3, time.Minute, time.Minute, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadAndClose(t *testing.T) {
	b, err := readAndClose(io.NopCloser(strings.NewReader("payload")))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}
