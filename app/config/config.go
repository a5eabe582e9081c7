// Package config provides a go-simpler.org/env configuration table and
// helpers for working with the list of key/value lists stored in .env
// files.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"

	"nostrium.dev/utils/apputil"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/envfile"
	"nostrium.dev/utils/log"
	"nostrium.dev/version"
)

// C is the configuration for the relay and client. These are read from the
// environment if present, or if a .env file is found in
// ~/.config/nostrium/ that is read instead and overrides anything else.
type C struct {
	AppName    string `env:"NOSTRIUM_APP_NAME" default:"nostrium" usage:"application name, used as the default config/data directory name"`
	Config     string `env:"NOSTRIUM_CONFIG_DIR" usage:"location for configuration file, which has the name '.env'"`
	State      string `env:"NOSTRIUM_STATE_DATA_DIR" usage:"storage location for state data affected by dynamic interactive interfaces"`
	DataDir    string `env:"NOSTRIUM_DATA_DIR" usage:"storage location for the event store"`
	Listen     string `env:"NOSTRIUM_LISTEN" default:"0.0.0.0" usage:"network listen address"`
	DNS        string `env:"NOSTRIUM_DNS" usage:"external DNS name that points at the relay"`
	Port       int    `env:"NOSTRIUM_PORT" default:"3334" usage:"port to listen on"`
	Scheme     string `env:"NOSTRIUM_SCHEME" default:"http" usage:"http or https; also controls the derived ws/wss service URL"`
	LogLevel   string `env:"NOSTRIUM_LOG_LEVEL" default:"info" usage:"debug level: fatal error warn info debug trace"`
	DbLogLevel string `env:"NOSTRIUM_DB_LOG_LEVEL" default:"info" usage:"debug level: fatal error warn info debug trace"`
	Pprof      bool   `env:"NOSTRIUM_PPROF" default:"false" usage:"enable pprof on 127.0.0.1:6060"`

	// relay_info fields (NIP-11).
	RelayName        string `env:"NOSTRIUM_RELAY_NAME" default:"nostrium" usage:"NIP-11 relay name"`
	RelayDescription string `env:"NOSTRIUM_RELAY_DESCRIPTION" usage:"NIP-11 relay description"`
	RelayOwners      []string `env:"NOSTRIUM_RELAY_OWNERS" usage:"comma-separated list of hex pubkeys treated as relay owners/admins"`

	// relay_info.limitation fields.
	MaxMessageLength    int   `env:"NOSTRIUM_MAX_MESSAGE_LENGTH" default:"8000000" usage:"maximum accepted raw frame length in bytes"`
	MaxSubscriptions    int   `env:"NOSTRIUM_MAX_SUBSCRIPTIONS" default:"100" usage:"maximum live subscriptions per connection"`
	MaxLimit            int   `env:"NOSTRIUM_MAX_LIMIT" default:"5000" usage:"maximum filter limit a REQ/COUNT may request"`
	MaxSubidLength      int   `env:"NOSTRIUM_MAX_SUBID_LENGTH" default:"100" usage:"maximum subscription id length"`
	MaxEventTags        int   `env:"NOSTRIUM_MAX_EVENT_TAGS" default:"100" usage:"maximum tags on an accepted event"`
	MaxContentLength    int   `env:"NOSTRIUM_MAX_CONTENT_LENGTH" default:"8192" usage:"maximum event content length, in codepoints"`
	MinPowDifficulty    int   `env:"NOSTRIUM_MIN_POW_DIFFICULTY" default:"0" usage:"NIP-13 minimum proof-of-work difficulty required of accepted events"`
	RestrictedWrites    bool  `env:"NOSTRIUM_RESTRICTED_WRITES" default:"false" usage:"only owners/whitelisted pubkeys may publish"`
	CreatedAtLowerLimit int64 `env:"NOSTRIUM_CREATED_AT_LOWER_LIMIT" default:"0" usage:"reject events older than this many seconds before now; 0 disables"`
	CreatedAtUpperLimit int64 `env:"NOSTRIUM_CREATED_AT_UPPER_LIMIT" default:"0" usage:"reject events more than this many seconds in the future; 0 disables"`
	DefaultLimit        int   `env:"NOSTRIUM_DEFAULT_LIMIT" default:"500" usage:"filter limit applied when a REQ/COUNT omits one"`

	// auth fields.
	AuthRequired    bool     `env:"NOSTRIUM_AUTH_REQUIRED" default:"false" usage:"require NIP-42 authentication for all requests"`
	AuthMode        string   `env:"NOSTRIUM_AUTH_MODE" default:"none" usage:"none, whitelist, or denylist"`
	AuthWhitelist   []string `env:"NOSTRIUM_AUTH_WHITELIST" usage:"comma-separated hex pubkeys allowed to authenticate, when mode=whitelist"`
	AuthDenylist    []string `env:"NOSTRIUM_AUTH_DENYLIST" usage:"comma-separated hex pubkeys refused authentication, when mode=denylist"`
	AuthTimeoutSecs int      `env:"NOSTRIUM_AUTH_TIMEOUT_SECONDS" default:"10" usage:"seconds to wait for an AUTH response after challenging"`

	// relay_policy fields.
	MinPrefixLength int  `env:"NOSTRIUM_MIN_PREFIX_LENGTH" default:"0" usage:"minimum hex prefix length accepted for ids/authors filters; 0 disables"`
	PublicReadable  bool `env:"NOSTRIUM_PUBLIC_READABLE" default:"true" usage:"allow unauthenticated REQ/COUNT"`
}

// New creates a new config.C.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); chk.T(err) {
		return
	}
	if cfg.Config == "" {
		cfg.Config = filepath.Join(xdg.ConfigHome, cfg.AppName)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	envPath := filepath.Join(cfg.Config, ".env")
	if apputil.FileExists(envPath) {
		var e envfile.Env
		if e, err = envfile.GetEnv(envPath); chk.T(err) {
			return
		}
		if err = env.Load(
			cfg, &env.Options{SliceSep: ",", Source: e},
		); chk.E(err) {
			return
		}
		lvl, _ := log.ParseLevel(cfg.LogLevel)
		log.SetLevel(lvl)
		log.I.F("loaded configuration from %s", envPath)
	}
	return
}

// HelpRequested returns true if any of the common types of help invocation
// are found as the first command line parameter/flag.
func HelpRequested() (help bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "help", "-h", "--h", "-help", "--help", "?":
			help = true
		}
	}
	return
}

// GetEnv processes os.Args to detect a request for printing the current
// settings as a list of environment variable key/values.
func GetEnv() (requested bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "env":
			requested = true
		}
	}
	return
}

// KV is a key/value pair.
type KV struct{ Key, Value string }

// KVSlice is a collection of key/value pairs.
type KVSlice []KV

func (kv KVSlice) Len() int           { return len(kv) }
func (kv KVSlice) Less(i, j int) bool { return kv[i].Key < kv[j].Key }
func (kv KVSlice) Swap(i, j int)      { kv[i], kv[j] = kv[j], kv[i] }

// Compose merges two KVSlice together, replacing the values of earlier
// keys with the same named KV items later in the slice.
func (kv KVSlice) Compose(kv2 KVSlice) (out KVSlice) {
	for _, p := range kv {
		out = append(out, p)
	}
out:
	for i, p := range kv2 {
		for j, q := range out {
			if p.Key == q.Key {
				out[j].Value = kv2[i].Value
				continue out
			}
		}
		out = append(out, p)
	}
	return
}

// EnvKV turns a struct with `env` keys (used with go-simpler/env) into a
// standard formatted environment variable key/value pair list, one per
// line. Note you must dereference a pointer type to use this.
func EnvKV(cfg any) (m KVSlice) {
	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		v := reflect.ValueOf(cfg).Field(i).Interface()
		var val string
		switch x := v.(type) {
		case string:
			val = x
		case int, int64, bool, time.Duration:
			val = fmt.Sprint(x)
		case []string:
			if len(x) > 0 {
				val = strings.Join(x, ",")
			}
		}
		if k == "" {
			continue
		}
		m = append(m, KV{k, val})
	}
	return
}

// PrintEnv renders the key/values of a config.C to a provided io.Writer.
func PrintEnv(cfg *C, printer io.Writer) {
	kvs := EnvKV(*cfg)
	sort.Sort(kvs)
	for _, v := range kvs {
		_, _ = fmt.Fprintf(printer, "%s=%s\n", v.Key, v.Value)
	}
}

// PrintHelp outputs a help text listing the configuration options and
// default values to a provided io.Writer (usually os.Stderr or os.Stdout).
func PrintHelp(cfg *C, printer io.Writer) {
	_, _ = fmt.Fprintf(
		printer,
		"%s %s\n\n", cfg.AppName, version.V,
	)

	_, _ = fmt.Fprintf(
		printer,
		"Environment variables that configure %s:\n\n", cfg.AppName,
	)

	env.Usage(cfg, printer, &env.Options{SliceSep: ","})
	_, _ = fmt.Fprintf(
		printer,
		"\nCLI parameter 'help' also prints this information\n"+
			"\n.env file found at the path %s will be automatically "+
			"loaded for configuration.\nset NOSTRIUM_CONFIG_DIR for a custom load path.\n"+
			"values in this file override the environment and "+
			"you can also edit the file to set configuration options\n\n"+
			"use the parameter 'env' to print out the current configuration to the terminal\n\n"+
			"set the environment using\n\n\t%s env > %s/.env\n", cfg.Config,
		os.Args[0],
		cfg.Config,
	)

	_, _ = fmt.Fprintf(printer, "\ncurrent configuration:\n\n")
	PrintEnv(cfg, printer)
	_, _ = fmt.Fprintln(printer)
}
