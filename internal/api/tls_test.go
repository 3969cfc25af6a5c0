package api

import (
	"testing"
)

func TestInitTLSRequiresBothFiles(t *testing.T) {
	cases := []struct {
		name      string
		cert, key string
		want      bool
	}{
		{"neither set", "", "", false},
		{"cert only", "/path/to/cert.pem", "", false},
		{"key only", "", "/path/to/key.pem", false},
		{"both set", "/path/to/cert.pem", "/path/to/key.pem", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GRIDWORKS_TLS_CERT", tc.cert)
			t.Setenv("GRIDWORKS_TLS_KEY", tc.key)
			SetTLSConfigForTest(nil)

			InitTLS()

			if IsTLSEnabled() != tc.want {
				t.Errorf("IsTLSEnabled() = %v, want %v", IsTLSEnabled(), tc.want)
			}
		})
	}
}

func TestGetTLSConfigCarriesPaths(t *testing.T) {
	t.Setenv("GRIDWORKS_TLS_CERT", "/path/to/cert.pem")
	t.Setenv("GRIDWORKS_TLS_KEY", "/path/to/key.pem")
	SetTLSConfigForTest(nil)

	InitTLS()

	cfg := GetTLSConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config with both env vars set")
	}
	if cfg.CertFile != "/path/to/cert.pem" || cfg.KeyFile != "/path/to/key.pem" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadTLSConfigDisabled(t *testing.T) {
	SetTLSConfigForTest(nil)

	if LoadTLSConfig() != nil {
		t.Error("expected nil config when TLS is off")
	}
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	SetTLSConfigForTest(&TLSConfig{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	t.Cleanup(func() { SetTLSConfigForTest(nil) })

	if LoadTLSConfig() != nil {
		t.Error("expected nil config when the key pair cannot be read")
	}
}
