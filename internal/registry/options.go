package registry

import (
	"fmt"
	"strconv"
	"time"
)

// Option property keys accepted by NewOptions.
const (
	// OptionCacheSize bounds the version cache entry count.
	OptionCacheSize = "schema.cache.size"
	// OptionCacheExpiryInterval is the version cache TTL in seconds.
	OptionCacheExpiryInterval = "schema.cache.expiry.interval"
)

// Option defaults.
const (
	DefaultCacheSize          = 10000
	DefaultCacheExpirySeconds = 3600
)

// Options is a typed view over the registry's property map.
type Options struct {
	cacheSize   int
	cacheExpiry time.Duration
}

// NewOptions reads the enumerated keys from the property map, applying
// defaults for absent keys. Unknown keys are ignored; malformed values for
// known keys are an error.
func NewOptions(props map[string]interface{}) (*Options, error) {
	o := &Options{
		cacheSize:   DefaultCacheSize,
		cacheExpiry: DefaultCacheExpirySeconds * time.Second,
	}
	if raw, ok := props[OptionCacheSize]; ok {
		n, err := intValue(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid value %v", OptionCacheSize, raw)
		}
		o.cacheSize = n
	}
	if raw, ok := props[OptionCacheExpiryInterval]; ok {
		n, err := intValue(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid value %v", OptionCacheExpiryInterval, raw)
		}
		o.cacheExpiry = time.Duration(n) * time.Second
	}
	return o, nil
}

// DefaultOptions returns the option defaults.
func DefaultOptions() *Options {
	o, _ := NewOptions(nil)
	return o
}

// CacheSize returns the version cache entry bound.
func (o *Options) CacheSize() int { return o.cacheSize }

// CacheExpiry returns the version cache TTL.
func (o *Options) CacheExpiry() time.Duration { return o.cacheExpiry }

func intValue(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}
