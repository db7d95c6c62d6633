package registry

import (
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o, err := NewOptions(nil)
	if err != nil {
		t.Fatalf("NewOptions(nil): %v", err)
	}
	if o.CacheSize() != DefaultCacheSize {
		t.Errorf("expected default cache size %d, got %d", DefaultCacheSize, o.CacheSize())
	}
	if o.CacheExpiry() != DefaultCacheExpirySeconds*time.Second {
		t.Errorf("expected default expiry %ds, got %s", DefaultCacheExpirySeconds, o.CacheExpiry())
	}
}

func TestOptionsOverrides(t *testing.T) {
	o, err := NewOptions(map[string]interface{}{
		OptionCacheSize:           500,
		OptionCacheExpiryInterval: "120",
		"some.unknown.key":        "ignored",
	})
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	if o.CacheSize() != 500 {
		t.Errorf("expected cache size 500, got %d", o.CacheSize())
	}
	if o.CacheExpiry() != 2*time.Minute {
		t.Errorf("expected expiry 2m, got %s", o.CacheExpiry())
	}
}

func TestOptionsRejectsMalformedValues(t *testing.T) {
	cases := map[string]interface{}{
		OptionCacheSize:           "not-a-number",
		OptionCacheExpiryInterval: -5,
	}
	for key, value := range cases {
		if _, err := NewOptions(map[string]interface{}{key: value}); err == nil {
			t.Errorf("expected error for %s=%v", key, value)
		}
	}
}
