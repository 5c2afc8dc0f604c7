package compound

import (
	"strconv"
	"strings"
)

// Record is the fixed property set retrieved for one compound.
// Pointer fields are nil when PubChem returned no value.
type Record struct {
	Name             string   `json:"name"`
	CID              int64    `json:"cid"`
	InChIKey         *string  `json:"inchi_key"`
	ShortInChIKey    *string  `json:"short_inchi_key"`
	MonoisotopicMass *float64 `json:"monoisotopic_mass"`
	Formula          *string  `json:"formula"`
	CanonicalSMILES  *string  `json:"canonical_smiles"`
}

// ShortKey returns the InChIKey prefix before the first hyphen (the skeleton block).
// Returns "" for an empty key.
func ShortKey(inchiKey string) string {
	before, _, _ := strings.Cut(inchiKey, "-")
	return before
}

// Line returns the tab-separated output line for r, without a trailing newline.
// Field order: name, cid, inchikey, short inchikey, monoisotopic mass, formula, canonical SMILES.
func (r *Record) Line() string {
	fields := []string{
		r.Name,
		strconv.FormatInt(r.CID, 10),
		deref(r.InChIKey),
		deref(r.ShortInChIKey),
		formatMass(r.MonoisotopicMass),
		deref(r.Formula),
		deref(r.CanonicalSMILES),
	}
	for i, f := range fields {
		fields[i] = sanitizeField(f)
	}
	return strings.Join(fields, "\t")
}

// Display returns the "name: cid" entry shown for a resolved compound.
func (r *Record) Display() string {
	return r.Name + ": " + strconv.FormatInt(r.CID, 10)
}

// formatMass renders the shortest decimal form that round-trips.
func formatMass(m *float64) string {
	if m == nil {
		return ""
	}
	return strconv.FormatFloat(*m, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sanitizeField keeps a field on one line and inside its column.
func sanitizeField(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return ' '
		}
		return r
	}, s)
}
