// SPDX-License-Identifier: Apache-2.0

package migrate

// Logger receives progress messages while migrations run. The cmd layer
// passes a pterm-backed implementation; library callers usually leave the
// default, which discards everything.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any) {}
func (noopLogger) Warnf(string, ...any) {}
