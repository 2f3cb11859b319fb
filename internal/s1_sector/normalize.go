package s1_sector

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IDPrefix is the namespace of sector identifiers ("KRX:반도체")
const IDPrefix = "KRX:"

// Normalize canonicalizes a sector or index name:
// NFC composition, trimmed, internal whitespace collapsed to one space
func Normalize(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// SectorID builds the canonical sector identifier for a display name
func SectorID(name string) string {
	return IDPrefix + Normalize(name)
}

// SectorName extracts the display name from a sector identifier.
// Identifiers without a namespace are returned normalized as-is.
func SectorName(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return Normalize(id[i+1:])
	}
	return Normalize(id)
}
