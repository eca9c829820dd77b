package adapter

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// SafeToolCallID returns id unchanged when it satisfies the vendor's
// identifier pattern, and otherwise a deterministic replacement derived from
// a truncated hash of the original. The mapping is stable, so a rehashed
// request id and the tool result referencing it land on the same value.
func SafeToolCallID(id string, pattern *regexp.Regexp, maxLen int) string {
	if pattern.MatchString(id) && (maxLen <= 0 || len(id) <= maxLen) {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	hashed := hex.EncodeToString(sum[:])
	if maxLen > 0 && maxLen < len(hashed) {
		hashed = hashed[:maxLen]
	}
	return hashed
}
