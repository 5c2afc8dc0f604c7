// Package ops implements chemfetch operations. The CLI, the web UI and the
// MCP server are thin shells over these functions.
package ops

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/pubchem"
	"github.com/hpungsan/chemfetch/internal/resolve"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// NewResolver builds the PubChem-backed resolver described by cfg.
// A nil httpClient gets one with the configured request timeout.
func NewResolver(cfg *config.Config, httpClient *http.Client) *resolve.Resolver {
	return resolve.FromConfig(pubchem.New(cfg, httpClient), cfg)
}

// newRunID generates a new ULID.
func newRunID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
