package resilience

// FallbackConfig configures an ordered fallback strategy chain: the
// primary result is attempted by the caller; on a triggering error, each
// Chain entry is tried in order, then Default if every entry fails.
// ShouldFallback filters which errors trigger the chain at all; nil means
// every error triggers it.
type FallbackConfig[T any] struct {
	ShouldFallback func(error) bool
	Chain          []func() (T, error)
	Default        func() (T, bool)
}

// WithFallback runs primary, falling through FallbackConfig's chain and
// default on a triggering error. If every strategy fails and no default
// yields a value, the error of the last strategy tried is returned
// (primary's own error when Chain is empty).
func WithFallback[T any](cfg *FallbackConfig[T], primary func() (T, error)) (T, error) {
	result, err := primary()
	if err == nil {
		return result, nil
	}
	if cfg == nil || (cfg.ShouldFallback != nil && !cfg.ShouldFallback(err)) {
		return result, err
	}

	lastErr := err
	for _, strategy := range cfg.Chain {
		result, err = strategy()
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	if cfg.Default != nil {
		if value, ok := cfg.Default(); ok {
			return value, nil
		}
	}

	return result, lastErr
}
