package kafka

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	SASLMechanismPlain       = "PLAIN"
	SASLMechanismScramSHA256 = "SCRAM-SHA-256"
	SASLMechanismScramSHA512 = "SCRAM-SHA-512"
	SASLMechanismGSSAPI      = "GSSAPI"
	SASLMechanismOAuthBearer = "OAUTHBEARER"
)

// SASLConfig selects how the clients authenticate. Username and password are used by PLAIN and SCRAM.
type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`

	GSSAPI      SASLGSSAPIConfig  `koanf:"gssapi"`
	OAuthBearer OAuthBearerConfig `koanf:"oauth"`
}

func (c *SASLConfig) SetDefaults() {
	c.Enabled = false
	c.Mechanism = SASLMechanismPlain
	c.GSSAPI.SetDefaults()
	c.OAuthBearer.SetDefaults()
}

// mechanism is the configured mechanism in its canonical upper case spelling.
func (c *SASLConfig) mechanism() string {
	return strings.ToUpper(strings.TrimSpace(c.Mechanism))
}

func (c *SASLConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.mechanism() {
	case SASLMechanismPlain, SASLMechanismScramSHA256, SASLMechanismScramSHA512:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("sasl mechanism '%v' requires a username and a password", c.Mechanism)
		}
	case SASLMechanismGSSAPI:
		if err := c.GSSAPI.Validate(); err != nil {
			return fmt.Errorf("invalid gssapi config: %w", err)
		}
	case SASLMechanismOAuthBearer:
		if err := c.OAuthBearer.Validate(); err != nil {
			return fmt.Errorf("invalid oauth config: %w", err)
		}
	default:
		return fmt.Errorf("sasl mechanism '%v' is not supported", c.Mechanism)
	}
	return nil
}

// OAuthBearerConfig requests tokens from TokenEndpoint with the client credentials grant.
type OAuthBearerConfig struct {
	TokenEndpoint string        `koanf:"tokenEndpoint"`
	ClientID      string        `koanf:"clientId"`
	ClientSecret  string        `koanf:"clientSecret"`
	Scope         string        `koanf:"scope"`
	Timeout       time.Duration `koanf:"timeout"`
}

func (c *OAuthBearerConfig) SetDefaults() {
	c.Timeout = 30 * time.Second
}

func (c *OAuthBearerConfig) Validate() error {
	if c.TokenEndpoint == "" {
		return fmt.Errorf("token endpoint is not specified")
	}
	if _, err := url.ParseRequestURI(c.TokenEndpoint); err != nil {
		return fmt.Errorf("token endpoint '%v' is not a valid url: %w", c.TokenEndpoint, err)
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("client credentials are not specified")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
