package store

import "github.com/cqkv/clipring/keydir"

// OverflowPolicy decides what TryAppend does when the arena or the
// descriptor ring has no room for a new packet.
type OverflowPolicy int

const (
	// PolicyReject drops the incoming packet and leaves the store untouched.
	PolicyReject OverflowPolicy = iota
	// PolicyEvictOldest drops packets from the tail until the new one fits.
	PolicyEvictOldest
)

func (p OverflowPolicy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyEvictOldest:
		return "evict"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy accepts the names produced by String.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "", "reject":
		return PolicyReject, true
	case "evict", "evict-oldest":
		return PolicyEvictOldest, true
	}
	return PolicyReject, false
}

type options struct {
	policy  OverflowPolicy
	syncDir keydir.Keydir
}

type Option func(*options)

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithKeydir replaces the default btree sync-frame directory.
func WithKeydir(kd keydir.Keydir) Option {
	return func(o *options) {
		o.syncDir = kd
	}
}
