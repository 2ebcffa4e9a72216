// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package configdb

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrDatabaseNotConfigured indicates the CONFIGDB_* environment variables
// are absent or incomplete.
var ErrDatabaseNotConfigured = errors.New("database connection configuration is unavailable")

// DatabaseURLFromEnv builds a PostgreSQL URL from CONFIGDB_HOST,
// CONFIGDB_PORT, CONFIGDB_USER, CONFIGDB_PASSWORD, CONFIGDB_DBNAME and
// optionally CONFIGDB_SSLMODE. CONFIGDB_URL, when set, is returned as-is.
// HOST and DBNAME are required; PORT defaults to 5432.
func DatabaseURLFromEnv() (string, error) {
	const prefix = "CONFIGDB_"

	if urlStr := os.Getenv(prefix + "URL"); urlStr != "" {
		return urlStr, nil
	}

	host := os.Getenv(prefix + "HOST")
	dbname := os.Getenv(prefix + "DBNAME")

	var missing []string
	if host == "" {
		missing = append(missing, prefix+"HOST")
	}
	if dbname == "" {
		missing = append(missing, prefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", errors.Join(ErrDatabaseNotConfigured, fmt.Errorf(
			"missing required environment variable(s): %s",
			strings.Join(missing, ", "),
		))
	}

	port := os.Getenv(prefix + "PORT")
	if port == "" {
		port = "5432"
	}

	u := &url.URL{
		Scheme: "postgresql",
		Host:   host + ":" + port,
		Path:   dbname,
	}

	if user := os.Getenv(prefix + "USER"); user != "" {
		if pass := os.Getenv(prefix + "PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}

	q := u.Query()
	if sslmode := os.Getenv(prefix + "SSLMODE"); sslmode != "" {
		q.Set("sslmode", sslmode)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
