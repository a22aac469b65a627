// Package identifier generates and validates the human-facing business
// identifiers assigned to patients and referrals. These identifiers are
// distinct from the UUID primary keys: they appear on printed documents
// and in the public tracking endpoint, so they follow a fixed readable
// format of PREFIX-YYYY-NNNNNN.
package identifier

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

const (
	// PatientPrefix is the prefix for patient identifiers (PAT-2025-483920).
	PatientPrefix = "PAT"
	// ReferralPrefix is the prefix for referral identifiers (REF-2025-104958).
	ReferralPrefix = "REF"
)

var pattern = regexp.MustCompile(`^(PAT|REF)-\d{4}-\d{6}$`)

// Generator produces candidate identifiers. The random source and clock are
// injectable so tests can produce deterministic output. Candidates are not
// guaranteed unique; the database unique constraint is the authoritative
// guard and callers retry on collision.
type Generator struct {
	now func() time.Time
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded from the current time.
func NewGenerator() *Generator {
	return &Generator{
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewGeneratorWith returns a Generator with an explicit clock and random
// source.
func NewGeneratorWith(now func() time.Time, rng *rand.Rand) *Generator {
	return &Generator{now: now, rng: rng}
}

// Next returns a fresh candidate identifier for the given prefix, e.g.
// "REF-2025-104958". The numeric suffix is a random six digit value, so
// leading zeros are preserved.
func (g *Generator) Next(prefix string) string {
	year := g.now().UTC().Year()
	n := g.rng.Intn(1000000)
	return fmt.Sprintf("%s-%d-%06d", prefix, year, n)
}

// Normalize trims surrounding whitespace and upper-cases s so lookups by
// identifier are case-insensitive.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Valid reports whether s matches the identifier format.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// IsPatient reports whether s is a well-formed patient identifier.
func IsPatient(s string) bool {
	return Valid(s) && s[:3] == PatientPrefix
}

// IsReferral reports whether s is a well-formed referral identifier.
func IsReferral(s string) bool {
	return Valid(s) && s[:3] == ReferralPrefix
}
