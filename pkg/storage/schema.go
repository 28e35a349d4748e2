// Copyright 2025 The Bindu Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var schemaInvalidChars = regexp.MustCompile(`[^a-z0-9_]`)

// SchemaForDID derives the PostgreSQL schema name isolating a tenant. The
// mapping is pure and deterministic:
//
//	lowercase -> non-alphanumeric to underscore -> "schema_" prefix on a
//	leading digit -> if longer than 63 chars, first 54 chars plus "_" plus
//	an 8-char hex sha256 of the full sanitized name.
//
// PostgreSQL identifiers are limited to 63 characters; the hash suffix keeps
// long DIDs unique while staying readable.
func SchemaForDID(did string) string {
	sanitized := schemaInvalidChars.ReplaceAllString(strings.ToLower(did), "_")
	if sanitized != "" && sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "schema_" + sanitized
	}
	if len(sanitized) > 63 {
		sum := sha256.Sum256([]byte(sanitized))
		sanitized = sanitized[:54] + "_" + hex.EncodeToString(sum[:])[:8]
	}
	return sanitized
}

// sanitizeIdent strips everything but alphanumerics and underscores. Used as
// a second line of defense before any identifier is interpolated into DDL;
// values always travel as bind parameters.
func sanitizeIdent(s string) string {
	return schemaInvalidChars.ReplaceAllString(strings.ToLower(s), "_")
}
