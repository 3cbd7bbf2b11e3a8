package kafka

import "fmt"

const (
	GSSAPIAuthTypeUser   = "USER_AUTH"
	GSSAPIAuthTypeKeytab = "KEYTAB_AUTH"
)

// SASLGSSAPIConfig represents the Kafka Kerberos config
type SASLGSSAPIConfig struct {
	AuthType           string `koanf:"authType"`
	KeyTabPath         string `koanf:"keyTabPath"`
	KerberosConfigPath string `koanf:"kerberosConfigPath"`
	ServiceName        string `koanf:"serviceName"`
	Username           string `koanf:"username"`
	Password           string `koanf:"password"`
	Realm              string `koanf:"realm"`

	// EnableFast enables FAST, which is a pre-authentication framework for Kerberos
	EnableFast bool `koanf:"enableFast"`
}

func (s *SASLGSSAPIConfig) SetDefaults() {
	s.ServiceName = "kafka"
	s.EnableFast = true
}

func (s *SASLGSSAPIConfig) Validate() error {
	switch s.AuthType {
	case GSSAPIAuthTypeUser:
		if s.Password == "" {
			return fmt.Errorf("gssapi user auth requires a password")
		}
	case GSSAPIAuthTypeKeytab:
		if s.KeyTabPath == "" {
			return fmt.Errorf("gssapi keytab auth requires a keytab path")
		}
	default:
		return fmt.Errorf("gssapi authType must be one of %v or %v", GSSAPIAuthTypeUser, GSSAPIAuthTypeKeytab)
	}
	if s.KerberosConfigPath == "" {
		return fmt.Errorf("gssapi requires a kerberos config path")
	}
	return nil
}
