package prometheus

import "fmt"

type Config struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	Namespace   string `koanf:"namespace"`
	TLSCertFile string `koanf:"tlsCertificate"`
	TLSKeyFile  string `koanf:"tlsKey"`
}

func (c *Config) SetDefaults() {
	c.Port = 8080
	c.Namespace = "lagtracker"
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tlsCertificate and tlsKey must be set together")
	}
	return nil
}

// Address is the listen address of the metrics server.
func (c *Config) Address() string {
	return fmt.Sprintf("%v:%d", c.Host, c.Port)
}
