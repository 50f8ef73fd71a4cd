// Package tlsconfig builds client-side *tls.Config values for the
// listing client's outbound connections to S3-compatible endpoints.
package tlsconfig

import "crypto/tls"

// Config holds the knobs the bootstrap collaborator exposes for
// outbound TLS. Unlike a server-side listener, there is no certificate
// to load here — only the version floor and whether to skip
// verification for endpoints behind a self-signed proxy in tests. The
// cipher suite and curve lists are fixed in Build.
type Config struct {
	MinVersion         uint16
	InsecureSkipVerify bool
}

// Default returns the production-safe baseline: TLS 1.2 floor, modern
// cipher suites preferred, verification on.
func Default() Config {
	return Config{MinVersion: tls.VersionTLS12}
}

// Build returns a *tls.Config with ServerName set to host for SNI.
// host is the endpoint's hostname, without port.
func (c Config) Build(host string) *tls.Config {
	minVersion := c.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	return &tls.Config{
		ServerName:         host,
		MinVersion:         minVersion,
		InsecureSkipVerify: c.InsecureSkipVerify,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256, tls.CurveP384},
	}
}
