package pubchem

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Match is one compound returned by an identifier lookup.
type Match struct {
	CID       int64  `json:"cid"`
	IUPACName string `json:"iupac_name,omitempty"`
}

// Properties is the property bag fetched for a single CID.
// Empty strings and a nil mass mean PubChem returned no value.
type Properties struct {
	CID              int64
	CanonicalSMILES  string
	InChIKey         string
	InChI            string
	MonoisotopicMass *float64
	MolecularFormula string
}

// propertyTable mirrors the PUG REST PropertyTable response.
type propertyTable struct {
	PropertyTable struct {
		Properties []propertyRow `json:"Properties"`
	} `json:"PropertyTable"`
}

type propertyRow struct {
	CID                int64     `json:"CID"`
	IUPACName          string    `json:"IUPACName"`
	CanonicalSMILES    string    `json:"CanonicalSMILES"`
	ConnectivitySMILES string    `json:"ConnectivitySMILES"`
	SMILES             string    `json:"SMILES"`
	InChIKey           string    `json:"InChIKey"`
	InChI              string    `json:"InChI"`
	MonoisotopicMass   flexFloat `json:"MonoisotopicMass"`
	MolecularFormula   string    `json:"MolecularFormula"`
}

// canonicalSMILES prefers CanonicalSMILES and falls back to the names PubChem
// switched to in 2025.
func (r propertyRow) canonicalSMILES() string {
	switch {
	case r.CanonicalSMILES != "":
		return r.CanonicalSMILES
	case r.ConnectivitySMILES != "":
		return r.ConnectivitySMILES
	}
	return r.SMILES
}

// synonymList mirrors the PUG REST InformationList response.
type synonymList struct {
	InformationList struct {
		Information []struct {
			CID     int64    `json:"CID"`
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

// fault mirrors the PUG REST error body.
type fault struct {
	Fault struct {
		Code    string   `json:"Code"`
		Message string   `json:"Message"`
		Details []string `json:"Details"`
	} `json:"Fault"`
}

// flexFloat decodes a JSON number or a numeric string. PubChem has served
// MonoisotopicMass as both.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		f.Value = &v
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}
