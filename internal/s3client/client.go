package s3client

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/FairForge/s3sweep/internal/signer"
	"github.com/FairForge/s3sweep/internal/tlsconfig"
)

// requestDeadline is the spec's single ceiling covering connect,
// handshake, write, and read for one listing request.
const requestDeadline = 300 * time.Second

// Endpoint is the host the client dials. Resolver (C3) supplies these;
// s3client only depends on the shape, not the resolver package, so the
// two can be tested independently.
type Endpoint struct {
	Host   string // hostname used for SNI and the Host header
	Addr   string // "ip:port" to dial
	Scheme string // "http" or "https"
}

// Client issues signed ListObjectsV1/V2 calls against one resolved
// endpoint. It owns no connection pool: every call opens, uses, and
// closes exactly one socket, matching the one-stream-per-request
// contract the crawler relies on for predictable back-pressure.
type Client struct {
	signer *signer.Signer
	tls    tlsconfig.Config
}

// New returns a Client that signs requests with signer and dials TLS
// per tlsCfg (zero value is a safe default).
func New(s *signer.Signer, tlsCfg tlsconfig.Config) *Client {
	return &Client{signer: s, tls: tlsCfg}
}

// ListV1 issues a ListObjects (v1) request.
func (c *Client) ListV1(ctx context.Context, ep Endpoint, p Params) (ListingResult, error) {
	return c.list(ctx, ep, p, false)
}

// ListV2 issues a ListObjectsV2 request.
func (c *Client) ListV2(ctx context.Context, ep Endpoint, p Params) (ListingResult, error) {
	return c.list(ctx, ep, p, true)
}

func (c *Client) list(ctx context.Context, ep Endpoint, p Params, v2 bool) (ListingResult, error) {
	deadline := time.Now().Add(requestDeadline)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	req, prevToken, err := c.buildRequest(ep, p, v2)
	if err != nil {
		return ListingResult{}, err
	}

	conn, err := c.dial(ctx, ep, deadline)
	if err != nil {
		return ListingResult{}, &TransportError{Code: "dial", Err: err}
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return ListingResult{}, &TransportError{Code: "deadline", Err: err}
	}

	if err := req.Write(conn); err != nil {
		return ListingResult{}, &TransportError{Code: "write", Err: err}
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return ListingResult{}, &TransportError{Code: "read", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ListingResult{}, &TransportError{Code: "read", Err: err}
	}

	// Any non-2xx status, 4xx included, is reported as a transport error,
	// so the Worker retries it like a failed connection.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ListingResult{}, &TransportError{Code: "status", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return parseListBucketResult(body, v2, prevToken)
}

func (c *Client) dial(ctx context.Context, ep Endpoint, deadline time.Time) (net.Conn, error) {
	dialer := &net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr)
	if err != nil {
		return nil, err
	}

	if ep.Scheme == "http" {
		return conn, nil
	}

	tlsConn := tls.Client(conn, c.tls.Build(ep.Host))
	handshakeCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (c *Client) buildRequest(ep Endpoint, p Params, v2 bool) (*http.Request, string, error) {
	query := buildQuery(p, v2)
	url := fmt.Sprintf("%s://%s/%s", ep.Scheme, ep.Host, p.Bucket)
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Host = ep.Host
	req.Header.Set("host", ep.Host)

	var prevToken string
	if v2 {
		prevToken = p.ContinuationToken
	} else {
		prevToken = p.Marker
	}

	if _, err := c.signer.SignRequest(req, nil, time.Now()); err != nil {
		return nil, "", fmt.Errorf("sign request: %w", err)
	}
	return req, prevToken, nil
}
