package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/cuemby/burrow/pkg/security"
)

// Environment variables read by Load
const (
	EnvAuthority  = "ETCD_AUTHORITY"
	EnvScheme     = "ETCD_SCHEME"
	EnvEndpoints  = "ETCD_ENDPOINTS"
	EnvKeyFile    = "ETCD_KEY_FILE"
	EnvCertFile   = "ETCD_CERT_FILE"
	EnvCACertFile = "ETCD_CA_CERT_FILE"
	EnvHostname   = "HOSTNAME"
)

const (
	DefaultAuthority = "127.0.0.1:2379"
	DefaultScheme    = "http"
)

// Config locates the store and the local host
type Config struct {
	// Scheme is "http" or "https"
	Scheme string

	// Addresses are host:port pairs, one per store member
	Addresses []string

	TLS security.TLSFiles

	// Hostname overrides the local hostname when set
	Hostname string
}

// Endpoints returns the store member URLs
func (c *Config) Endpoints() []string {
	urls := make([]string, 0, len(c.Addresses))
	for _, addr := range c.Addresses {
		urls = append(urls, c.Scheme+"://"+addr)
	}
	return urls
}

// Secure reports whether the store is reached over TLS
func (c *Config) Secure() bool {
	return c.Scheme == "https"
}

// Error reports an invalid configuration value
type Error struct {
	Var    string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Var, e.Value, e.Reason)
}

// FromEnv loads configuration from the process environment
func FromEnv() (*Config, error) {
	return Load(os.Getenv)
}

// Load reads and validates configuration through getenv. Unset or empty
// variables take their defaults. ETCD_ENDPOINTS, when set, replaces both
// ETCD_AUTHORITY and ETCD_SCHEME.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Scheme:   DefaultScheme,
		Hostname: strings.TrimSpace(getenv(EnvHostname)),
		TLS: security.TLSFiles{
			KeyFile:  getenv(EnvKeyFile),
			CertFile: getenv(EnvCertFile),
			CAFile:   getenv(EnvCACertFile),
		},
	}

	addrVar, schemeVar := EnvAuthority, EnvScheme
	if endpoints := getenv(EnvEndpoints); endpoints != "" {
		addrVar, schemeVar = EnvEndpoints, EnvEndpoints
		if err := cfg.parseEndpoints(endpoints); err != nil {
			return nil, err
		}
	} else {
		authority := getenv(EnvAuthority)
		if authority == "" {
			authority = DefaultAuthority
		}
		if scheme := getenv(EnvScheme); scheme != "" {
			cfg.Scheme = scheme
		}
		cfg.Addresses = []string{authority}
	}

	for _, addr := range cfg.Addresses {
		if !ValidHostPort(addr) {
			return nil, &Error{Var: addrVar, Value: addr, Reason: "address must take the form <address>:<port>"}
		}
	}

	switch cfg.Scheme {
	case "http":
	case "https":
		if err := cfg.validateTLS(); err != nil {
			return nil, err
		}
	default:
		return nil, &Error{Var: schemeVar, Value: cfg.Scheme, Reason: `scheme must be one of "", "http", "https"`}
	}

	if cfg.Hostname != "" && !ValidHostname(cfg.Hostname) {
		return nil, &Error{Var: EnvHostname, Value: cfg.Hostname, Reason: "not a valid hostname"}
	}

	return cfg, nil
}

func (c *Config) parseEndpoints(raw string) error {
	scheme := ""
	for _, e := range strings.Split(raw, ",") {
		e = strings.TrimSpace(e)
		s, addr, ok := strings.Cut(e, "://")
		if !ok {
			return &Error{Var: EnvEndpoints, Value: raw, Reason: "must take the form ENDPOINT[,ENDPOINT...] where ENDPOINT is http[s]://ADDRESS:PORT"}
		}
		if scheme == "" {
			scheme = s
		} else if s != scheme {
			return &Error{Var: EnvEndpoints, Value: raw, Reason: "inconsistent protocols"}
		}
		c.Addresses = append(c.Addresses, addr)
	}
	c.Scheme = scheme
	return nil
}

func (c *Config) validateTLS() error {
	key, cert := c.TLS.KeyFile, c.TLS.CertFile
	if (key == "") != (cert == "") {
		return &Error{
			Var:    EnvKeyFile + "," + EnvCertFile,
			Value:  key + "," + cert,
			Reason: "key and certificate must both be specified or both be blank",
		}
	}
	if key != "" {
		if security.CheckReadable(key) != nil || security.CheckReadable(cert) != nil {
			return &Error{
				Var:    EnvKeyFile + "," + EnvCertFile,
				Value:  key + "," + cert,
				Reason: "both must be readable file paths",
			}
		}
	}
	if c.TLS.CAFile == "" || security.CheckReadable(c.TLS.CAFile) != nil {
		return &Error{
			Var:    EnvCACertFile,
			Value:  c.TLS.CAFile,
			Reason: "certificate authority cert is required and must be a readable file path",
		}
	}
	return nil
}

var hostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidHostname accepts DNS hostnames and IPv4 addresses
func ValidHostname(hostname string) bool {
	if hostname == "" || len(hostname) > 255 {
		return false
	}
	for _, label := range strings.Split(hostname, ".") {
		if !hostnameLabel.MatchString(label) {
			return false
		}
	}
	return true
}

// ValidHostPort accepts "<hostname>:<port>" with a port in 1..65535
func ValidHostPort(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return false
	}
	if !ValidHostname(parts[0]) {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return port >= 1 && port <= 65535
}
