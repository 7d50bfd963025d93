package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/http"
	"net/textproto"
	"strings"
)

// headerOrder is the fixed, ordered attribute vector fed into the digest.
// Reordering this list, or changing the salt, invalidates every existing
// rate-limit bucket.
var headerOrder = []string{
	// Browser headers
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",

	// Game-server headers
	"roblox-id",

	// Client hints (modern browsers)
	"sec-ch-ua",
	"sec-ch-ua-platform",
	"sec-ch-ua-platform-version",
	"sec-ch-ua-arch",

	// Network and connection info
	"x-forwarded-for",
	"x-real-ip",
	"cf-connecting-ip",
	"x-client-ip",

	// TLS indicators
	"x-forwarded-proto",
	"x-forwarded-ssl",

	// Viewport and device hints
	"viewport-width",
	"width",
	"device-memory",
	"rtt",
	"downlink",
	"ect",
}

// missingValue substitutes absent headers. A header that is present with
// an empty value still contributes "" to the vector, so absence and
// emptiness hash differently.
const missingValue = "unknown"

// separator joins the attribute values. "|" is not a legal character in
// the token-based headers above, so values cannot collide across slots.
const separator = "|"

// Generator derives stable per-client fingerprints from request headers.
// The salt is a server-side secret so clients cannot precompute digests.
type Generator struct {
	salt string
}

func NewGenerator(salt string) *Generator {
	return &Generator{salt: salt}
}

// Fingerprint returns the hex SHA-256 digest of the ordered attribute
// vector plus the salt. Identical headers and salt always produce the
// same digest.
func (g *Generator) Fingerprint(h http.Header) string {
	values := headerValues(h)
	sum := sha256.Sum256([]byte(strings.Join(values, separator) + "-" + g.salt))
	return hex.EncodeToString(sum[:])
}

// Quality is a diagnostic score for a single request's fingerprint.
// It never influences the fingerprint value and must not gate requests.
type Quality struct {
	Confidence   float64 `json:"confidence"`
	Entropy      float64 `json:"entropy"`
	PresentCount int     `json:"presentCount"`
}

// Quality scores how identifying this request's header set is.
//
// Confidence is built from three parts, capped at 100:
//   - up to 40 points for the number of headers actually present
//   - up to 30 points for the Shannon entropy of the value distribution
//   - up to 30 points of fixed bonuses for high-signal headers
func (g *Generator) Quality(h http.Header) Quality {
	values := headerValues(h)

	present := 0
	for _, v := range values {
		if v != missingValue {
			present++
		}
	}

	entropy := shannonEntropy(values)

	confidence := math.Min(float64(present)*2, 40)
	confidence += math.Min(entropy*10, 30)

	if headerPresent(h, "user-agent") {
		confidence += 8
	}
	if headerPresent(h, "sec-ch-ua") {
		confidence += 6
	}
	if headerPresent(h, "accept-language") {
		confidence += 4
	}
	if headerPresent(h, "roblox-id") {
		confidence += 8
	}
	if headerPresent(h, "x-forwarded-for") || headerPresent(h, "cf-connecting-ip") {
		confidence += 4
	}
	confidence = math.Min(confidence, 100)

	return Quality{
		Confidence:   math.Round(confidence*100) / 100,
		Entropy:      math.Round(entropy*100) / 100,
		PresentCount: present,
	}
}

// headerValues maps the ordered header list to its values, substituting
// missingValue for absent headers. Presence is checked on the header map
// itself so an empty value is not mistaken for absence.
func headerValues(h http.Header) []string {
	values := make([]string, len(headerOrder))
	for i, name := range headerOrder {
		if vs, ok := h[textproto.CanonicalMIMEHeaderKey(name)]; ok && len(vs) > 0 {
			values[i] = vs[0]
		} else {
			values[i] = missingValue
		}
	}
	return values
}

func headerPresent(h http.Header, name string) bool {
	vs, ok := h[textproto.CanonicalMIMEHeaderKey(name)]
	return ok && len(vs) > 0 && vs[0] != ""
}

// shannonEntropy computes the entropy (in bits) of the value distribution
// of a single request's attribute set.
func shannonEntropy(values []string) float64 {
	if len(values) == 0 {
		return 0
	}

	freq := make(map[string]int, len(values))
	for _, v := range values {
		freq[v]++
	}

	var entropy float64
	total := float64(len(values))
	for _, count := range freq {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
