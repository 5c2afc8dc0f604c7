package compound

import (
	"strings"

	"github.com/hpungsan/chemfetch/internal/errors"
)

// Kind says how an identifier should be looked up.
type Kind string

const (
	KindName   Kind = "name"   // common or systematic name
	KindCID    Kind = "cid"    // PubChem compound id
	KindSMILES Kind = "smiles" // SMILES line notation
)

// Kinds lists the recognized kinds in display order.
var Kinds = []Kind{KindName, KindCID, KindSMILES}

// kindAliases maps accepted spellings (lowercased) to a Kind.
var kindAliases = map[string]Kind{
	"name":       KindName,
	"cid":        KindCID,
	"numeric-id": KindCID,
	"smiles":     KindSMILES,
	"structure":  KindSMILES,
}

// ParseKind parses a kind value or label, case-insensitively.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", errors.NewInvalidKind(s)
}

// Valid reports whether k is one of the recognized kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindName, KindCID, KindSMILES:
		return true
	}
	return false
}

// Label returns the display label used in status text ("Name", "CID", "SMILES").
func (k Kind) Label() string {
	switch k {
	case KindName:
		return "Name"
	case KindCID:
		return "CID"
	case KindSMILES:
		return "SMILES"
	}
	return string(k)
}

// Namespace returns the PUG REST input namespace for k.
func (k Kind) Namespace() string {
	return string(k)
}
