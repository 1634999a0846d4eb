// SPDX-License-Identifier: Apache-2.0

// Package flags exposes the CLI's global settings, each resolvable from a
// command line flag or a PGREV_* environment variable.
package flags

import (
	"github.com/spf13/viper"
)

func PostgresURL() string {
	return viper.GetString("PG_URL")
}

func ConfigPath() string {
	return viper.GetString("CONFIG")
}

func StateSchema() string {
	return viper.GetString("STATE_SCHEMA")
}

func LockTimeout() int {
	return viper.GetInt("LOCK_TIMEOUT")
}

func Role() string {
	return viper.GetString("ROLE")
}

func Verbose() bool {
	return viper.GetBool("VERBOSE")
}
