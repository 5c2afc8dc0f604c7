package compound

import "fmt"

// MaxStatusIdentifier is the number of identifier characters shown in status text.
const MaxStatusIdentifier = 15

// Final batch status texts.
const (
	StatusCompleted   = "Process completed"
	StatusInterrupted = "Process interrupted"
)

// Truncate shortens an identifier to MaxStatusIdentifier characters plus "..."
// when it is longer. Shorter identifiers are returned unchanged.
func Truncate(identifier string) string {
	runes := []rune(identifier)
	if len(runes) <= MaxStatusIdentifier {
		return identifier
	}
	return string(runes[:MaxStatusIdentifier]) + "..."
}

// StatusText formats the per-item progress line, e.g. "Processing Name 3/10: acetylsalicyl...".
func StatusText(kind Kind, index, total int, identifier string) string {
	return fmt.Sprintf("Processing %s %d/%d: %s", kind.Label(), index, total, Truncate(identifier))
}
