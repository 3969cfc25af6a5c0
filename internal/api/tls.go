package api

import (
	"crypto/tls"
	"log"
	"os"
)

// TLSConfig holds the certificate paths for the API listener.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

var tlsConfig *TLSConfig

// InitTLS reads GRIDWORKS_TLS_CERT and GRIDWORKS_TLS_KEY. TLS is only
// enabled when both are present; a lone cert or key is ignored.
func InitTLS() {
	certFile := os.Getenv("GRIDWORKS_TLS_CERT")
	keyFile := os.Getenv("GRIDWORKS_TLS_KEY")

	if certFile != "" && keyFile != "" {
		tlsConfig = &TLSConfig{CertFile: certFile, KeyFile: keyFile}
	}
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsConfig != nil && tlsConfig.CertFile != "" && tlsConfig.KeyFile != ""
}

// GetTLSConfig returns the current TLS configuration (may be nil).
func GetTLSConfig() *TLSConfig {
	return tlsConfig
}

// LoadTLSConfig builds a tls.Config from the configured key pair,
// returning nil when TLS is off or the pair cannot be loaded. Used to
// verify the certificate before binding the listener.
func LoadTLSConfig() *tls.Config {
	if !IsTLSEnabled() {
		return nil
	}

	cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		log.Printf("failed to load TLS certificate: %v", err)
		return nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// SetTLSConfigForTest allows tests to set TLS config directly.
func SetTLSConfigForTest(cfg *TLSConfig) {
	tlsConfig = cfg
}
