package database

import (
	"fmt"
	"strings"
)

// ConstructDatabaseURL combines a base URL with an optional database name.
// Local hosts default to sslmode=disable; hosted databases default to
// sslmode=require. An explicit sslmode in the base URL always wins.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	databaseURL := strings.TrimRight(baseURL, "/")

	if databaseName != "" {
		if strings.Contains(databaseURL, "?") {
			parts := strings.SplitN(databaseURL, "?", 2)
			databaseURL = fmt.Sprintf("%s/%s?%s", parts[0], databaseName, parts[1])
		} else {
			databaseURL = fmt.Sprintf("%s/%s", databaseURL, databaseName)
		}
	}

	if databaseURL == "" || strings.Contains(databaseURL, "sslmode=") {
		return databaseURL
	}

	sslMode := "require"
	if isLocalHost(databaseURL) {
		sslMode = "disable"
	}

	separator := "&"
	if !strings.Contains(databaseURL, "?") {
		separator = "?"
	}
	return fmt.Sprintf("%s%ssslmode=%s", databaseURL, separator, sslMode)
}

func isLocalHost(databaseURL string) bool {
	for _, host := range []string{"@localhost", "@127.0.0.1", "@postgres:", "@db:"} {
		if strings.Contains(databaseURL, host) {
			return true
		}
	}
	return false
}
