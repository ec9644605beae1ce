package semdex

import "time"

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	schemaDir     string
	schemaVersion string

	driver    string // "memory", "redis" or "valkey"
	addrs     []string
	password  string
	keyPrefix string
	readiness time.Duration

	validate        bool
	allowDuplicates bool
	maxBatchSize    int
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		schemaDir:     "schema",
		schemaVersion: "v1",
		driver:        "memory",
		keyPrefix:     "semdex:",
		readiness:     defaultReadinessTimeout,
		validate:      true,
	}
}

// WithSchemaDir sets the schema registry root. Default: "schema".
func WithSchemaDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.schemaDir = dir
	})
}

// WithSchemaVersion selects the active schema version. Default: "v1".
func WithSchemaVersion(id string) Option {
	return optionFunc(func(c *clientConfig) {
		c.schemaVersion = id
	})
}

// WithRedis stores items in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey stores items in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps items in process memory. This is the default.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithKeyPrefix namespaces Redis keys. Default: "semdex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithReadinessTimeout bounds the wait for the database on New. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readiness = d
	})
}

// WithValidation toggles schema validation on Add and Update. Default: on.
func WithValidation(on bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.validate = on
	})
}

// WithDuplicates allows the same text to be indexed more than once.
func WithDuplicates(allow bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.allowDuplicates = allow
	})
}

// WithMaxBatchSize sets the maximum number of items per batch operation.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}
