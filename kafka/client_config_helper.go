package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/kerberos"
	"github.com/twmb/franz-go/pkg/sasl/oauth"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
	"go.uber.org/zap"

	krbconfig "github.com/jcmturner/gokrb5/v8/config"
)

// NewKgoConfig creates the base options for all Kafka clients as exposed by the franz-go library.
// If TLS certificates or Kerberos files can't be read an error will be returned.
func NewKgoConfig(cfg Config, logger *zap.Logger) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.FetchMaxBytes(5 * 1000 * 1000), // 5MB
		// Allow metadata to be refreshed more often than 5s (default) if needed.
		// That will mitigate issues with unknown partitions shortly after creating
		// them.
		kgo.MetadataMinAge(time.Second),
		kgo.WithLogger(newKgoZapLogger(logger.Named("kgo"))),
		kgo.WithHooks(newClientHooks(logger.Named("kafka_client_hooks"))),
	}

	// Add Rack Awareness if configured
	if cfg.RackID != "" {
		opts = append(opts, kgo.Rack(cfg.RackID))
	}

	if cfg.SASL.Enabled {
		mechanism, err := saslMechanism(cfg.SASL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mechanism))
	}

	if cfg.TLS.Enabled {
		dialer, err := tlsDialer(cfg.TLS, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.Dialer(dialer.DialContext))
	}

	return opts, nil
}

func saslMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch cfg.mechanism() {
	case SASLMechanismPlain:
		return plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism(), nil
	case SASLMechanismScramSHA256, SASLMechanismScramSHA512:
		scramAuth := scram.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}
		if cfg.mechanism() == SASLMechanismScramSHA256 {
			return scramAuth.AsSha256Mechanism(), nil
		}
		return scramAuth.AsSha512Mechanism(), nil
	case SASLMechanismGSSAPI:
		return kerberosMechanism(cfg.GSSAPI)
	case SASLMechanismOAuthBearer:
		tokens := newTokenSource(cfg.OAuthBearer)
		return oauth.Oauth(func(ctx context.Context) (oauth.Auth, error) {
			token, err := tokens.Token(ctx)
			return oauth.Auth{
				Zid:   cfg.OAuthBearer.ClientID,
				Token: token,
			}, err
		}), nil
	}
	return nil, fmt.Errorf("unsupported sasl mechanism '%v'", cfg.Mechanism)
}

func kerberosMechanism(cfg SASLGSSAPIConfig) (sasl.Mechanism, error) {
	kerbCfg, err := krbconfig.Load(cfg.KerberosConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create kerberos config from specified config filepath: %w", err)
	}

	var krbClient *client.Client
	switch cfg.AuthType {
	case GSSAPIAuthTypeUser:
		krbClient = client.NewWithPassword(
			cfg.Username,
			cfg.Realm,
			cfg.Password,
			kerbCfg,
			client.DisablePAFXFAST(!cfg.EnableFast))
	case GSSAPIAuthTypeKeytab:
		ktb, err := keytab.Load(cfg.KeyTabPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load keytab: %w", err)
		}
		krbClient = client.NewWithKeytab(
			cfg.Username,
			cfg.Realm,
			ktb,
			kerbCfg,
			client.DisablePAFXFAST(!cfg.EnableFast))
	default:
		return nil, fmt.Errorf("kafka.sasl.gssapi.authType must be one of %v or %v", GSSAPIAuthTypeUser, GSSAPIAuthTypeKeytab)
	}

	return kerberos.Auth{
		Client:           krbClient,
		Service:          cfg.ServiceName,
		PersistAfterAuth: true,
	}.AsMechanism(), nil
}

func tlsDialer(cfg TLSConfig, logger *zap.Logger) (*tls.Dialer, error) {
	var caCertPool *x509.CertPool
	if cfg.CaFilepath != "" || len(cfg.Ca) > 0 {
		ca, err := readPEM(cfg.CaFilepath, cfg.Ca)
		if err != nil {
			return nil, fmt.Errorf("failed to load ca cert: %w", err)
		}
		caCertPool = x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(ca) {
			logger.Warn("failed to append ca file to cert pool, is this a valid PEM format?")
		}
	}

	// If configured load TLS cert & key - Mutual TLS
	var certificates []tls.Certificate
	hasCert := cfg.CertFilepath != "" || len(cfg.Cert) > 0
	hasKey := cfg.KeyFilepath != "" || len(cfg.Key) > 0
	if hasCert || hasKey {
		cert, err := readPEM(cfg.CertFilepath, cfg.Cert)
		if err != nil {
			return nil, fmt.Errorf("failed to read TLS certificate: %w", err)
		}
		privateKey, err := readPEM(cfg.KeyFilepath, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to read TLS key: %w", err)
		}

		if cfg.Passphrase != "" {
			privateKey, err = decryptPrivateKey(privateKey, cfg.Passphrase, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt private key: %w", err)
			}
		}

		tlsCert, err := tls.X509KeyPair(cert, privateKey)
		if err != nil {
			return nil, fmt.Errorf("cannot parse pem: %w", err)
		}
		certificates = []tls.Certificate{tlsCert}
	}

	return &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipTLSVerify,
			Certificates:       certificates,
			RootCAs:            caCertPool,
		},
	}, nil
}

// readPEM returns the file contents if a path is set, otherwise the inline PEM.
func readPEM(path string, inline string) ([]byte, error) {
	if path == "" {
		return []byte(inline), nil
	}
	return os.ReadFile(path)
}

// decryptPrivateKey decrypts a legacy encrypted PEM private key. Unencrypted keys are returned as they are.
func decryptPrivateKey(keyPEM []byte, passphrase string, logger *zap.Logger) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block containing private key")
	}

	if !x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy PEM encryption is still in use
		return keyPEM, nil
	}

	logger.Warn("using legacy PEM encryption for the private key, this encryption method is insecure and deprecated")
	decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck // see above
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt PEM private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: decrypted}), nil
}
