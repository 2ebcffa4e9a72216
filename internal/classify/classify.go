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

// Package classify assigns sensitivity levels to configuration keys and
// masks values accordingly. Every value that reaches a log line or an
// audit record must pass through Mask first.
package classify

import "strings"

// Classification is the sensitivity level of a configuration key.
type Classification int

const (
	// Public values may be displayed and logged verbatim.
	Public Classification = iota
	// Internal values are partially masked outside the resolution path.
	Internal
	// Confidential values are never shown, not even partially.
	Confidential
)

const (
	publicName       = "PUBLIC"
	internalName     = "INTERNAL"
	confidentialName = "CONFIDENTIAL"

	// redactedToken replaces a confidential value wholesale so that
	// neither length nor partial content leaks.
	redactedToken = "[REDACTED]"

	// internalMarker replaces everything past the visible prefix of an
	// internal value.
	internalMarker = "****"

	internalVisiblePrefix = 4
)

func (c Classification) String() string {
	switch c {
	case Internal:
		return internalName
	case Confidential:
		return confidentialName
	default:
		return publicName
	}
}

// Parse maps a stored classification name to a Classification. Unknown or
// empty names report ok=false so the caller can fall back to inference.
func Parse(s string) (Classification, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case publicName:
		return Public, true
	case internalName:
		return Internal, true
	case confidentialName:
		return Confidential, true
	default:
		return Public, false
	}
}

// rule is one entry in the ordered inference table. Earlier rules win.
type rule struct {
	substring string
	class     Classification
}

var inferenceRules = []rule{
	{"password", Confidential},
	{"secret", Confidential},
	{"token", Confidential},
	{"api_key", Confidential},
	{"apikey", Confidential},
	{"private_key", Confidential},
	{"url", Internal},
	{"timeout", Internal},
	{"batch", Internal},
	{"limit", Internal},
}

// Classify infers a classification from the key name alone using the
// ordered rule table. Keys matching no rule are Public.
func Classify(key string) Classification {
	k := strings.ToLower(key)
	for _, r := range inferenceRules {
		if strings.Contains(k, r.substring) {
			return r.class
		}
	}
	return Public
}

// ForEntry resolves the classification for a stored entry: explicit
// per-entry metadata always wins over inference from the key name.
func ForEntry(explicit, key string) Classification {
	if c, ok := Parse(explicit); ok {
		return c
	}
	return Classify(key)
}

// Mask renders a value safe for display, logging, or auditing at the
// given classification. It never fails and never returns any substring of
// a confidential value.
func Mask(value string, class Classification) string {
	switch class {
	case Confidential:
		return redactedToken
	case Internal:
		if len(value) <= internalVisiblePrefix {
			return internalMarker
		}
		return value[:internalVisiblePrefix] + internalMarker
	default:
		return value
	}
}

// MaskByKey is a convenience for callers that have no explicit metadata.
func MaskByKey(key, value string) string {
	return Mask(value, Classify(key))
}
