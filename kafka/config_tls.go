package kafka

import "fmt"

// TLSConfig to connect to Kafka via TLS. Certificates can be given inline as PEM or as file paths.
type TLSConfig struct {
	Enabled               bool   `koanf:"enabled"`
	CaFilepath            string `koanf:"caFilepath"`
	CertFilepath          string `koanf:"certFilepath"`
	KeyFilepath           string `koanf:"keyFilepath"`
	Ca                    string `koanf:"ca"`
	Cert                  string `koanf:"cert"`
	Key                   string `koanf:"key"`
	Passphrase            string `koanf:"passphrase"`
	InsecureSkipTLSVerify bool   `koanf:"insecureSkipTlsVerify"`
}

func (c *TLSConfig) SetDefaults() {
	c.Enabled = false
}

func (c *TLSConfig) Validate() error {
	for _, pair := range []struct{ key, path, inline string }{
		{"ca", c.CaFilepath, c.Ca},
		{"cert", c.CertFilepath, c.Cert},
		{"key", c.KeyFilepath, c.Key},
	} {
		if pair.path != "" && pair.inline != "" {
			return fmt.Errorf("config keys '%vFilepath' and '%v' are both set. only one can be used at the same time", pair.key, pair.key)
		}
	}

	hasCert := c.CertFilepath != "" || c.Cert != ""
	hasKey := c.KeyFilepath != "" || c.Key != ""
	if hasCert != hasKey {
		return fmt.Errorf("mutual TLS requires both a certificate and a key")
	}
	if c.Passphrase != "" && !hasKey {
		return fmt.Errorf("a passphrase is set but no private key is configured")
	}
	return nil
}
