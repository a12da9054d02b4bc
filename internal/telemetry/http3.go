// Package telemetry exposes allocator state over HTTP/3, so a remote
// frame-timing dashboard can poll offset-allocator reports without
// sharing a process with the renderer host.
package telemetry

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	quic "github.com/quic-go/quic-go"
	http3 "github.com/quic-go/quic-go/http3"
)

// HTTP3Server wraps http3.Server lifecycle for one allocator telemetry
// endpoint.
type HTTP3Server struct {
	pc    net.PacketConn
	srv   *http3.Server
	close func() error
	errC  chan error
	addr  string
}

// HTTP3Options tunes the QUIC transport a report server runs over. A
// telemetry link sits idle between polls far longer than a typical HTTP/3
// workload, so KeepAlivePeriod matters here in a way it wouldn't for a
// request-heavy service: without it a NAT or load balancer between the
// dashboard and the renderer host can silently drop the association.
type HTTP3Options struct {
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
	Enable0RTT      bool
}

// NewHTTP3Server creates a report server bound to addr with the given TLS
// config, handler, and QUIC options. A zero-value HTTP3Options uses
// quic-go's own defaults.
func NewHTTP3Server(addr string, tlsCfg *tls.Config, h http.Handler, opts HTTP3Options) *HTTP3Server {
	// HTTP/3 requires QUIC, which requires TLS 1.3; enforce it rather than
	// let a caller's weaker tls.Config silently fail to negotiate.
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{"h3"}}
	} else if tlsCfg.MinVersion == 0 || tlsCfg.MinVersion < tls.VersionTLS13 {
		c := tlsCfg.Clone()
		c.MinVersion = tls.VersionTLS13

		if len(c.NextProtos) == 0 {
			c.NextProtos = []string{"h3"}
		}

		tlsCfg = c
	}

	qc := &quic.Config{}
	if opts.MaxIdleTimeout > 0 {
		qc.MaxIdleTimeout = opts.MaxIdleTimeout
	}

	if opts.KeepAlivePeriod > 0 {
		qc.KeepAlivePeriod = opts.KeepAlivePeriod
	}

	if opts.Enable0RTT {
		qc.Allow0RTT = true
	}

	s := &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: h, QUICConfig: qc}

	return &HTTP3Server{srv: s, addr: addr, errC: make(chan error, 1)}
}

// Start begins serving HTTP/3 on an ephemeral UDP port if addr ends with ":0".
// The returned address is the actual bound address.
func (s *HTTP3Server) Start() (string, error) {
	var err error

	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}

	realAddr := s.pc.LocalAddr().String()
	done := make(chan struct{})

	go func() {
		// Propagate the first error if any, but do not block shutdown paths.
		if err := s.srv.Serve(s.pc); err != nil {
			select {
			case s.errC <- err:
			default:
			}
		}

		close(done)
	}()

	s.close = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return nil
	}

	return realAddr, nil
}

// Stop stops the server.
func (s *HTTP3Server) Stop() error {
	if s.close != nil {
		return s.close()
	}

	return nil
}

// Error returns a non-blocking channel that receives the first serve error, if any.
func (s *HTTP3Server) Error() <-chan error {
	if s == nil || s.errC == nil {
		ch := make(chan error)
		close(ch)

		return ch
	}

	return s.errC
}
