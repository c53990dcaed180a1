package record

import (
	"math/rand"
	"strings"
)

// Table prefixes for generated identifiers.
const (
	PrefixLead        = "LEA"
	PrefixPet         = "PET"
	PrefixService     = "SVC"
	PrefixAppointment = "APT"
	PrefixBrand       = "BRD"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const idSuffixLen = 6

// NewID returns a record identifier of the fixed shape the whole system
// uses: 3-letter table prefix + 6 random uppercase alphanumerics.
func NewID(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + idSuffixLen)
	b.WriteString(prefix)
	for i := 0; i < idSuffixLen; i++ {
		b.WriteByte(idAlphabet[rand.Intn(len(idAlphabet))])
	}
	return b.String()
}
