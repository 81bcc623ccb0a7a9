package cache

// ScopedKeyer wraps a Keyer with a prefix to isolate namespaces that share
// a backend, such as several flowtrim servers in front of one Redis.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "flowtrim:v1:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// CollapseKey generates a prefixed key for collapse results.
func (k *ScopedKeyer) CollapseKey(tableHash string, opts CollapseKeyOpts) string {
	return k.prefix + k.inner.CollapseKey(tableHash, opts)
}

// RenderKey generates a prefixed key for rendered artifacts.
func (k *ScopedKeyer) RenderKey(tableHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(tableHash, opts)
}
