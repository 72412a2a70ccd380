package fetcher

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// utlsConn wraps a utls.UConn and satisfies net.Conn plus the
// ConnectionState method net/http2 looks for.
type utlsConn struct {
	*utls.UConn
}

func (c *utlsConn) ConnectionState() tls.ConnectionState {
	cs := c.UConn.ConnectionState()
	return tls.ConnectionState{
		Version:                    cs.Version,
		HandshakeComplete:          cs.HandshakeComplete,
		CipherSuite:                cs.CipherSuite,
		NegotiatedProtocol:         cs.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: cs.NegotiatedProtocolIsMutual,
		ServerName:                 cs.ServerName,
		PeerCertificates:           cs.PeerCertificates,
		VerifiedChains:             cs.VerifiedChains,
		OCSPResponse:               cs.OCSPResponse,
	}
}

// newClient returns a one-shot client. HTTPS goes through a browser TLS fingerprint so
// news sites behind bot filters serve the real page; plain HTTP uses a standard transport.
// Both dial through the private-address guard.
func newClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	h1 := &http.Transport{
		DialContext:       safeDialContext(dialer, allowPrivate),
		DisableKeepAlives: true,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &browserTransport{
			dialer:       dialer,
			h1:           h1,
			h2:           &http2.Transport{IdleConnTimeout: timeout},
			allowPrivate: allowPrivate,
		},
	}
}

type browserTransport struct {
	dialer       *net.Dialer
	h1           *http.Transport
	h2           *http2.Transport
	allowPrivate bool
}

func (bt *browserTransport) dialUTLS(ctx context.Context, addr string) (net.Conn, string, error) {
	conn, err := safeDialContext(bt.dialer, bt.allowPrivate)(ctx, "tcp", addr)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloFirefox_120)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, "", err
	}
	return &utlsConn{tlsConn}, tlsConn.ConnectionState().NegotiatedProtocol, nil
}

func (bt *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return bt.h1.RoundTrip(req)
	}

	addr := req.URL.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "443")
	}

	conn, alpn, err := bt.dialUTLS(req.Context(), addr)
	if err != nil {
		return nil, err
	}

	if alpn == "h2" {
		h2conn, err := bt.h2.NewClientConn(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		resp, err := h2conn.RoundTrip(req)
		if err != nil {
			h2conn.Close()
			return nil, err
		}
		resp.Body = &connClosingBody{ReadCloser: resp.Body, conn: h2conn}
		return resp, nil
	}

	// HTTP/1.1: hand the finished TLS conn to a one-shot transport.
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return conn, nil
		},
		DisableKeepAlives: true,
	}
	return transport.RoundTrip(req)
}

// connClosingBody tears down the per-request connection when the body is closed, so
// no HTTP/2 connection outlives its single request.
type connClosingBody struct {
	io.ReadCloser
	conn   io.Closer
	closed sync.Once
}

func (b *connClosingBody) Close() error {
	err := b.ReadCloser.Close()
	b.closed.Do(func() {
		if cerr := b.conn.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
