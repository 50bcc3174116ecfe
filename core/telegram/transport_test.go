package telegram

import (
	"io"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type flakyTransport struct {
	failures int
	err      error
	calls    int
	bodies   []string
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func post(t *testing.T, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader(body))
	require.NoError(t, err)
	return req
}

func TestRetryTransportReplaysBody(t *testing.T) {
	base := &flakyTransport{failures: 2, err: syscall.ECONNRESET}
	rt := &retryTransport{base: base, retries: 3, backoff: time.Millisecond}

	resp, err := rt.RoundTrip(post(t, "chat_id=1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, base.calls)
	require.Equal(t, []string{"chat_id=1", "chat_id=1", "chat_id=1"}, base.bodies)
}

func TestRetryTransportGivesUp(t *testing.T) {
	base := &flakyTransport{failures: 10, err: syscall.ECONNREFUSED}
	rt := &retryTransport{base: base, retries: 2, backoff: time.Millisecond}
	_, err := rt.RoundTrip(post(t, "x"))
	require.ErrorIs(t, err, syscall.ECONNREFUSED)
	require.Equal(t, 3, base.calls)

	base = &flakyTransport{failures: 10, err: io.EOF}
	rt = &retryTransport{base: base, retries: 2, backoff: time.Millisecond}
	_, err = rt.RoundTrip(post(t, "x"))
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 1, base.calls)
}

func TestHTTPClientDefaults(t *testing.T) {
	opts := HTTPClientOptions{}.withDefaults()
	require.Equal(t, 30*time.Second, opts.Timeout)
	require.Equal(t, 3, opts.Retries)
	require.Zero(t, HTTPClientOptions{Retries: -1}.withDefaults().Retries)

	client := BuildHTTPClient(HTTPClientOptions{Timeout: time.Minute})
	require.Equal(t, time.Minute, client.Timeout)
}

func TestBuildPoller(t *testing.T) {
	lp, ok := BuildPoller(PollerOptions{RunMode: "unknown"}).(*tele.LongPoller)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, lp.Timeout)
	require.Equal(t, AllowedUpdates, lp.AllowedUpdates)

	wh, ok := BuildPoller(PollerOptions{
		RunMode: " Webhook ",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://forge.example/hook", SecretToken: "s3"},
	}).(*tele.Webhook)
	require.True(t, ok)
	require.Equal(t, "0.0.0.0:8443", wh.Listen)
	require.Equal(t, "s3", wh.SecretToken)
	require.Equal(t, "https://forge.example/hook", wh.Endpoint.PublicURL)

	mode, target := describePoller(wh)
	require.Equal(t, RunModeWebhook, mode)
	require.Equal(t, "0.0.0.0:8443", target)
}
