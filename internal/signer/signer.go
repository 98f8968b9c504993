// Package signer builds the three ACS authentication headers NetStorage
// requires on every request, per spec §4.1.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Identity carries the pieces of a ClientConfig the signer needs, kept
// narrow so the signer package has no dependency on the root package.
type Identity struct {
	Key     string
	KeyName string
	CPCode  string
}

// Headers holds the three X-Akamai-ACS-* header values produced by Sign.
type Headers struct {
	Action   string
	AuthData string
	AuthSign string
}

// Clock lets tests pin the unixSeconds component; defaults to time.Now in
// production via the caller-supplied value, so the signer package itself
// stays pure and deterministic given its inputs.
type Clock func() int64

// Nonce generates the uniqueId component of the auth-data tuple: a short
// opaque token combining a random component with the process id, per
// spec §4.1 / §9 (uniqueness guaranteed within the process, not globally).
func Nonce() string {
	u := uuid.New()
	return fmt.Sprintf("%x-%d", u[:6], os.Getpid())
}

// BuildQuery produces the stable-ordered action query string: it begins
// with version=1, action=<verb>, format=xml, then merges the caller's
// params (later keys overriding earlier ones, so a version, action or
// format param replaces the default value in place), sorted by key for
// everything after the fixed prefix.
func BuildQuery(verb string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "version" || k == "action" || k == "format" {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	prefix := [][2]string{{"version", "1"}, {"action", verb}, {"format", "xml"}}

	for i, kv := range prefix {
		if v, ok := params[kv[0]]; ok {
			kv[1] = v
		}

		if i > 0 {
			b.WriteString("&")
		}

		b.WriteString(kv[0])
		b.WriteString("=")
		b.WriteString(kv[1])
	}

	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}

	return b.String()
}

// NormalizePath prepends "/<cpCode>" when set and not already present, and
// trims one trailing slash, per spec §4.1.
func NormalizePath(cpCode, path string) string {
	if cpCode != "" {
		prefix := "/" + cpCode
		if !strings.HasPrefix(path, prefix+"/") && path != prefix {
			path = prefix + path
		}
	}

	return strings.TrimSuffix(path, "/")
}

// Sign builds the three ACS auth headers for a request to path with the
// given verb and action params.
func Sign(id Identity, path, verb string, params map[string]string, unixSeconds int64, uniqueID string) Headers {
	query := BuildQuery(verb, params)
	normalizedPath := NormalizePath(id.CPCode, path)

	authData := fmt.Sprintf("5, 0.0.0.0, 0.0.0.0, %s, %s, %s",
		strconv.FormatInt(unixSeconds, 10), uniqueID, id.KeyName)

	// Three lines joined by "\n": <authData><normalizedPath>,
	// x-akamai-acs-action:<query>, and an empty third line — which, once
	// joined, contributes no further newline but completes the one after
	// the query line.
	signatureInput := authData + normalizedPath + "\n" +
		"x-akamai-acs-action:" + query + "\n"

	mac := hmac.New(sha256.New, []byte(id.Key))
	mac.Write([]byte(signatureInput))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return Headers{
		Action:   query,
		AuthData: authData,
		AuthSign: sig,
	}
}

// ValidHeaderValue reports whether v is safe to place verbatim in an HTTP
// header value (no control characters, no CR/LF), resolving spec §9's open
// question about destination/target header encoding by rejecting anything
// that would violate RFC 7230 field-value grammar rather than attempting to
// percent-escape it.
func ValidHeaderValue(v string) bool {
	for _, r := range v {
		if r == '\r' || r == '\n' || (r < 0x20 && r != '\t') || r == 0x7f {
			return false
		}
	}

	return true
}
