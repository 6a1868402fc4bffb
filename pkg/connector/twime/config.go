package twime

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/robaho/go-twime/pkg/common"
)

type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// AccountKey identifies one TWIME session, it has the form {prefix}-TWIME-{venue}-{env}, e.g. ALFA-TWIME-FORTS-Test
type AccountKey struct {
	Prefix string
	Venue  string
	Env    string
}

func (k AccountKey) String() string {
	return k.Prefix + "-TWIME-" + k.Venue + "-" + k.Env
}

// ConfigurationError is returned when a connector cannot be constructed, it is never retried
type ConfigurationError struct {
	Key string
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("twime configuration %s: %s", e.Key, e.Msg)
}

func ParseAccountKey(s string) (AccountKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 || parts[1] != "TWIME" {
		return AccountKey{}, &ConfigurationError{Key: "account_key", Msg: fmt.Sprintf("%q is not {prefix}-TWIME-{venue}-{env}", s)}
	}
	for _, p := range parts {
		if p == "" {
			return AccountKey{}, &ConfigurationError{Key: "account_key", Msg: fmt.Sprintf("%q has an empty component", s)}
		}
	}
	return AccountKey{Prefix: parts[0], Venue: parts[2], Env: parts[3]}, nil
}

type Config struct {
	AccountKey AccountKey
	Main       Endpoint
	// bulk retransmission endpoint, used when the gap at logon is larger than MaxReSends
	Recovery    Endpoint
	Credentials string
	// trading account placed in every order
	Account string

	Heartbeat     time.Duration
	LogonTimeout  time.Duration
	LogoffTimeout time.Duration
	Reconnect     time.Duration
	Inactivity    time.Duration
	// how long Connect waits for the session to become active
	ConnectWait time.Duration

	// accept any gap at logon instead of requesting retransmission
	ResetSeqNums bool
	// cross check the fields echoed by the exchange against the request
	Paranoid   bool
	MaxReSends int
	// badger directory for sequence numbers, in memory if empty
	SeqStore string
}

const maxCredentials = 20

// LoadConfig reads the settings for accountKey. every name is looked up as <accountKey>.<name> first, then <name>,
// so a single properties file can hold several sessions.
func LoadConfig(props common.Properties, accountKey string) (Config, error) {
	key, err := ParseAccountKey(accountKey)
	if err != nil {
		return Config{}, err
	}
	get := func(name string) string {
		return props.GetString(accountKey+"."+name, props.GetString(name, ""))
	}
	millis := func(name string, def int) (time.Duration, error) {
		s := get(name)
		if s == "" {
			return time.Duration(def) * time.Millisecond, nil
		}
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return 0, &ConfigurationError{Key: name, Msg: fmt.Sprintf("invalid milliseconds %q", s)}
		}
		return time.Duration(v) * time.Millisecond, nil
	}
	endpoint := func(prefix string) (Endpoint, error) {
		host := get(prefix + "_host")
		port, err := strconv.Atoi(get(prefix + "_port"))
		if host == "" || err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, &ConfigurationError{Key: prefix + "_host/" + prefix + "_port", Msg: "missing or invalid endpoint"}
		}
		return Endpoint{Host: host, Port: port}, nil
	}

	cfg := Config{AccountKey: key}
	if cfg.Main, err = endpoint("main"); err != nil {
		return Config{}, err
	}
	if cfg.Recovery, err = endpoint("recovery"); err != nil {
		return Config{}, err
	}

	cfg.Credentials = get("credentials")
	if len(cfg.Credentials) > maxCredentials {
		return Config{}, &ConfigurationError{Key: "credentials", Msg: "longer than 20 bytes"}
	}
	cfg.Account = get("account")

	for _, d := range []struct {
		name string
		def  int
		dst  *time.Duration
	}{
		{"heartbeat_ms", 1000, &cfg.Heartbeat},
		{"logon_timeout_ms", 5000, &cfg.LogonTimeout},
		{"logoff_timeout_ms", 2000, &cfg.LogoffTimeout},
		{"reconnect_ms", 1000, &cfg.Reconnect},
		{"connect_wait_ms", 30000, &cfg.ConnectWait},
	} {
		if *d.dst, err = millis(d.name, d.def); err != nil {
			return Config{}, err
		}
	}
	if cfg.Inactivity, err = millis("inactivity_ms", 3*int(cfg.Heartbeat/time.Millisecond)); err != nil {
		return Config{}, err
	}

	if cfg.ResetSeqNums, err = parseBool(get("reset_seqnums"), "reset_seqnums"); err != nil {
		return Config{}, err
	}
	if cfg.Paranoid, err = parseBool(get("paranoid"), "paranoid"); err != nil {
		return Config{}, err
	}

	cfg.MaxReSends = 10
	if s := get("max_resends"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return Config{}, &ConfigurationError{Key: "max_resends", Msg: fmt.Sprintf("invalid count %q", s)}
		}
		cfg.MaxReSends = n
	}
	cfg.SeqStore = get("seq_store")
	return cfg, nil
}

func parseBool(s string, name string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &ConfigurationError{Key: name, Msg: fmt.Sprintf("invalid boolean %q", s)}
	}
	return b, nil
}
