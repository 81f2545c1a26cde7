package repositories

import "strconv"

// DefaultOrderNumberPrefix is prepended to the per-center sequence value.
const DefaultOrderNumberPrefix = "ORD-"

// SequenceConfig controls order number allocation.
type SequenceConfig struct {
	Prefix string
	// MaxRetries bounds re-allocation after a duplicate order number is
	// detected at insert time.
	MaxRetries int
	// OnRetry is called before every re-allocation. Optional.
	OnRetry func()
}

func (c SequenceConfig) withDefaults() SequenceConfig {
	if c.Prefix == "" {
		c.Prefix = DefaultOrderNumberPrefix
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

func (c SequenceConfig) retried() {
	if c.OnRetry != nil {
		c.OnRetry()
	}
}

// FormatOrderNumber renders sequence value n as an order number.
func FormatOrderNumber(prefix string, n int64) string {
	return prefix + strconv.FormatInt(n, 10)
}
