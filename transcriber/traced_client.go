package transcriber

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"golang.org/x/net/http2"
)

// maxResponseBytes bounds a server reply; a transcript is a few KB at most.
const maxResponseBytes = 1 << 20

var errResponseTooLarge = errors.New("response exceeds 1 MiB")

// tracedClient is the remote engine's HTTP client. It keeps connections to
// the whisper.cpp server warm and records where the time of each request
// went.
type tracedClient struct {
	client *http.Client
}

func newTracedClient() *tracedClient {
	tr := &http.Transport{
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     5 * time.Minute,
	}
	// Plain http servers keep HTTP/1.1; https endpoints negotiate h2.
	_ = http2.ConfigureTransport(tr)
	return &tracedClient{client: &http.Client{Transport: tr}}
}

type tracedResponse struct {
	body    []byte
	status  int
	metrics *NetworkMetrics
}

type timings struct {
	getConn, dns, tcp, tls  time.Time
	gotConn, headers, wrote time.Time
	firstByte               time.Time
}

func (t *timings) trace(m *NetworkMetrics) *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { t.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			t.gotConn = time.Now()
			m.ConnWait = t.gotConn.Sub(t.getConn)
			m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { t.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { m.DNS = time.Since(t.dns) },
		ConnectStart:      func(_, _ string) { t.tcp = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCP = time.Since(t.tcp) },
		TLSHandshakeStart: func() { t.tls = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			m.TLS = time.Since(t.tls)
			m.TLSProtocol = cs.NegotiatedProtocol
		},
		WroteHeaders: func() {
			t.headers = time.Now()
			m.ReqHeaders = t.headers.Sub(t.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.wrote = time.Now()
			m.ReqBody = t.wrote.Sub(t.headers)
		},
		GotFirstResponseByte: func() {
			// For whisper.cpp this is mostly decoding time on the server.
			t.firstByte = time.Now()
			m.TTFB = t.firstByte.Sub(t.wrote)
		},
	}
}

// do sends req and reads the whole reply.
func (c *tracedClient) do(req *http.Request) (*tracedResponse, error) {
	metrics := &NetworkMetrics{}
	var t timings
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), t.trace(metrics)))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, errResponseTooLarge
	}
	metrics.Download = time.Since(t.firstByte)
	metrics.Total = time.Since(start)

	return &tracedResponse{body: body, status: resp.StatusCode, metrics: metrics}, nil
}

// warm opens a connection to url so the first segment does not pay for
// connection setup. Any HTTP status counts as reachable.
func (c *tracedClient) warm(ctx context.Context, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return time.Since(start), nil
}
