package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/internal/utils"
)

// defaultCorrelationBucketMs is the time bucket width for correlation keys.
// A locally sent email and its provider echo land in the same bucket as long
// as the echo arrives within this window.
const defaultCorrelationBucketMs int64 = 10000

// maxCorrelatedBodyChars caps how much normalized body feeds the hash
const maxCorrelatedBodyChars = 10000

var (
	htmlCommentRe = regexp.MustCompile(`<!--[\s\S]*?-->`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// correlationPayload is the canonical pre-hash form. Field order is fixed by
// the struct so the JSON is deterministic.
type correlationPayload struct {
	Subject    string `json:"s"`
	BodyHash   string `json:"h"`
	Recipients string `json:"recipients"`
	From       string `json:"from"`
	Bucket     int64  `json:"b"`
}

// CorrelationKey derives the fingerprint that matches an optimistic local
// email row to the provider's echo of the same send. Both sides must compute
// it from the same fields: normalized subject, normalized body hash, sorted
// recipients, sender, and a coarse time bucket.
func CorrelationKey(subject, body, from string, to, cc []dto.EmailAddress, nowMs, bucketMs int64) string {
	if bucketMs <= 0 {
		bucketMs = defaultCorrelationBucketMs
	}

	payload := correlationPayload{
		Subject:    utils.NormalizeEmailSubject(subject),
		BodyHash:   hashHex(normalizeBody(body)),
		Recipients: normalizeRecipients(to, cc),
		From:       strings.ToLower(strings.TrimSpace(from)),
		Bucket:     nowMs / bucketMs,
	}

	raw, _ := json.Marshal(payload)
	return hashHex(string(raw))
}

// normalizeBody strips HTML comments (editor fingerprints differ between the
// client composer and the provider echo), collapses whitespace and caps length
func normalizeBody(body string) string {
	body = htmlCommentRe.ReplaceAllString(body, "")
	body = whitespaceRe.ReplaceAllString(body, " ")
	body = strings.TrimSpace(body)
	if len(body) > maxCorrelatedBodyChars {
		body = body[:maxCorrelatedBodyChars]
	}
	return body
}

func normalizeRecipients(to, cc []dto.EmailAddress) string {
	seen := map[string]bool{}
	var addresses []string
	for _, addr := range append(append([]dto.EmailAddress{}, to...), cc...) {
		a := strings.ToLower(strings.TrimSpace(addr.Address))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		addresses = append(addresses, a)
	}
	sort.Strings(addresses)
	return strings.Join(addresses, ",")
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
