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

// Package urlnorm canonicalizes base URLs so that two differently written
// URLs pointing at the same deployment compare equal as strings.
package urlnorm

import (
	"net/url"
	"strings"
)

// defaultPorts maps a scheme to the port that is implied when none is given.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize canonicalizes a URL for equality comparison: the scheme and
// host are lower-cased, a leading "www." is stripped from the host, the
// scheme's default port is removed, and a single trailing slash is dropped
// from the path. Malformed or empty input is returned unchanged; it is the
// caller's decision whether that is worth logging.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host = host + ":" + port
	}
	u.Host = host

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// Equal reports whether two URLs identify the same deployment after
// normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
