package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"masader/internal/cache"
	"masader/internal/engine"
)

// EnvPrefix prefixes every environment variable read by the server, e.g.
// MASADER_CACHE_REDIS_URL.
const EnvPrefix = "MASADER"

// Config holds every server option. Options are read from flags, the
// environment and a TOML file, in that priority order.
type Config struct {
	Bind    string
	Verbose bool

	Cache struct {
		cache.Config
		MasaderKey string
		TagsKey    string
	}

	Refresh struct {
		Command          string
		MasaderURL       string
		TagsURL          string
		OnStart          bool
		ReloadOnComplete bool
	}

	Schema struct {
		Strict bool
	}

	CORS struct {
		Origins []string
	}
}

// New returns a Config with default values.
func New() *Config {
	c := &Config{Bind: ":8080"}
	c.Cache.Backend = cache.BackendRedis
	c.Cache.RedisURL = "redis://localhost:6379/0"
	c.Cache.BoltPath = "masader.db"
	c.Cache.MasaderKey = engine.DefaultMasaderKey
	c.Cache.TagsKey = engine.DefaultTagsKey
	c.Refresh.OnStart = true
	c.Refresh.ReloadOnComplete = true
	c.CORS.Origins = []string{"*"}
	return c
}

// Flags registers every option on flags, bound to c.
func (c *Config) Flags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.Bind, "bind", "b", c.Bind, "Address to listen on.")
	flags.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Enable debug logging.")

	flags.StringVar(&c.Cache.Backend, "cache.backend", c.Cache.Backend, "Cache store backend: redis, bolt or memory.")
	flags.StringVar(&c.Cache.RedisURL, "cache.redis-url", c.Cache.RedisURL, "Redis URL of the cache store.")
	flags.StringVar(&c.Cache.BoltPath, "cache.bolt-path", c.Cache.BoltPath, "Bolt file of the cache store.")
	flags.StringVar(&c.Cache.MasaderKey, "cache.masader-key", c.Cache.MasaderKey, "Cache key holding the dataset catalog.")
	flags.StringVar(&c.Cache.TagsKey, "cache.tags-key", c.Cache.TagsKey, "Cache key holding the tag taxonomy.")

	flags.StringVar(&c.Refresh.Command, "refresh.command", c.Refresh.Command, "External command that repopulates the cache store.")
	flags.StringVar(&c.Refresh.MasaderURL, "refresh.masader-url", c.Refresh.MasaderURL, "URL of the upstream catalog document.")
	flags.StringVar(&c.Refresh.TagsURL, "refresh.tags-url", c.Refresh.TagsURL, "URL of the upstream tags document (JSON or YAML).")
	flags.BoolVar(&c.Refresh.OnStart, "refresh.on-start", c.Refresh.OnStart, "Refresh once at startup.")
	flags.BoolVar(&c.Refresh.ReloadOnComplete, "refresh.reload-on-complete", c.Refresh.ReloadOnComplete, "Reload the snapshot when the refresh job completes.")

	flags.BoolVar(&c.Schema.Strict, "schema.strict", c.Schema.Strict, "Reject catalogs whose records disagree with the first record's fields.")

	flags.StringSliceVar(&c.CORS.Origins, "cors.origins", c.CORS.Origins, "Allowed CORS origins.")
}

// Validate reports inconsistent options.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case cache.BackendRedis, cache.BackendBolt, cache.BackendMemory:
	default:
		return fmt.Errorf("invalid cache.backend %q", c.Cache.Backend)
	}
	if c.Refresh.Command != "" && c.Refresh.MasaderURL != "" {
		return fmt.Errorf("refresh.command and refresh.masader-url are mutually exclusive")
	}
	if (c.Refresh.MasaderURL == "") != (c.Refresh.TagsURL == "") {
		return fmt.Errorf("refresh.masader-url and refresh.tags-url must be set together")
	}
	return nil
}

// Load reads the command line, the environment, and a config file (if the
// "config" flag is set), and applies them to the flags in that priority
// order. Since each flag holds a pointer to where its value is stored, Load
// directly modifies the bound Config.
func Load(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}
		for _, key := range v.AllKeys() {
			if !validTags[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// A flag given on the command line wins; re-setting string
			// slices would also append rather than replace.
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		flagErr = f.Value.Set(value)
	})
	return flagErr
}
