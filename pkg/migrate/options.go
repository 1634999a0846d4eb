// SPDX-License-Identifier: Apache-2.0

package migrate

type options struct {
	// lock timeout in milliseconds for migration DDL operations
	lockTimeoutMs int

	// optional role to set before executing migrations
	role string

	logger Logger
}

type Option func(*options)

// WithLockTimeoutMs sets the lock timeout in milliseconds for migration DDL
// operations
func WithLockTimeoutMs(lockTimeoutMs int) Option {
	return func(o *options) {
		o.lockTimeoutMs = lockTimeoutMs
	}
}

// WithRole sets the role to set before executing migrations
func WithRole(role string) Option {
	return func(o *options) {
		o.role = role
	}
}

// WithLogger sets the logger progress messages are written to. The default
// discards them.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
