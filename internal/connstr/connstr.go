// SPDX-License-Identifier: Apache-2.0

// Package connstr normalizes Postgres connection strings. The CLI accepts the
// URL form; lib/pq wants the keyword/value form once extra settings are
// appended.
package connstr

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
)

// ToDSN converts a connection string in URL form into keyword/value form.
// Strings already in keyword/value form pass through unchanged.
func ToDSN(connStr string) string {
	if !isURL(connStr) {
		return connStr
	}
	dsn, err := pq.ParseURL(connStr)
	if err != nil {
		return connStr
	}
	return dsn
}

// WithDatabase points a connection string at a different database on the same
// server, accepting either form.
func WithDatabase(connStr, dbname string) (string, error) {
	if isURL(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			return "", fmt.Errorf("failed to parse connection string: %w", err)
		}
		u.Path = "/" + dbname
		return u.String(), nil
	}

	// in keyword/value form the last occurrence of a keyword wins
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(dbname)
	return fmt.Sprintf("%s dbname='%s'", connStr, escaped), nil
}

func isURL(connStr string) bool {
	return strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://")
}
