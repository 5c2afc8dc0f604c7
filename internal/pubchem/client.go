// Package pubchem is a small client for the PubChem PUG REST API covering the
// three calls chemfetch needs: identifier lookup, synonyms, and properties.
package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/errors"
)

// propertyList is the fixed property set requested per CID.
const propertyList = "CanonicalSMILES,InChIKey,InChI,MonoisotopicMass,MolecularFormula"

// DefaultTimeout is used when the config carries no request timeout.
const DefaultTimeout = 5 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to PUG REST. It is safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// New creates a client from config. A nil httpClient gets one with the
// configured request timeout.
func New(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.RequestTimeout()
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
	}
}

// Lookup returns the compounds matching identifier, in PubChem's order.
// An identifier PubChem does not know yields no matches and no error.
// The identifier travels in the POST body so SMILES with '/' or '#' survive.
func (c *Client) Lookup(ctx context.Context, identifier string, kind compound.Kind) ([]Match, error) {
	if !kind.Valid() {
		return nil, errors.NewInvalidKind(string(kind))
	}

	endpoint := fmt.Sprintf("%s/compound/%s/property/IUPACName/JSON", c.baseURL, kind.Namespace())
	form := url.Values{kind.Namespace(): {identifier}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var table propertyTable
	found, err := c.do(req, &table)
	if err != nil || !found {
		return nil, err
	}

	matches := make([]Match, 0, len(table.PropertyTable.Properties))
	for _, row := range table.PropertyTable.Properties {
		if row.CID == 0 {
			continue
		}
		matches = append(matches, Match{CID: row.CID, IUPACName: row.IUPACName})
	}
	return matches, nil
}

// Synonyms returns the known aliases of cid, most common first.
func (c *Client) Synonyms(ctx context.Context, cid int64) ([]string, error) {
	endpoint := fmt.Sprintf("%s/compound/cid/%d/synonyms/JSON", c.baseURL, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var list synonymList
	found, err := c.do(req, &list)
	if err != nil || !found {
		return nil, err
	}

	for _, info := range list.InformationList.Information {
		if len(info.Synonym) > 0 {
			return info.Synonym, nil
		}
	}
	return nil, nil
}

// Properties fetches the fixed property set for cid.
// Returns nil properties when PubChem has none for it.
func (c *Client) Properties(ctx context.Context, cid int64) (*Properties, error) {
	endpoint := fmt.Sprintf("%s/compound/cid/%d/property/%s/JSON", c.baseURL, cid, propertyList)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var table propertyTable
	found, err := c.do(req, &table)
	if err != nil || !found {
		return nil, err
	}
	if len(table.PropertyTable.Properties) == 0 {
		return nil, nil
	}

	row := table.PropertyTable.Properties[0]
	return &Properties{
		CID:              row.CID,
		CanonicalSMILES:  row.canonicalSMILES(),
		InChIKey:         row.InChIKey,
		InChI:            row.InChI,
		MonoisotopicMass: row.MonoisotopicMass.Value,
		MolecularFormula: row.MolecularFormula,
	}, nil
}

// do executes req and decodes a 200 body into out.
// found is false (with a nil error) for PUGREST.NotFound.
func (c *Client) do(req *http.Request, out any) (found bool, err error) {
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return false, &errors.ChemError{
				Code:    errors.ErrCancelled,
				Status:  499,
				Message: "request cancelled",
				Err:     ctxErr,
			}
		}
		return false, errors.NewNetwork(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, errors.NewNetwork(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, out); err != nil {
			return false, errors.NewUpstream(resp.StatusCode, fmt.Sprintf("invalid response body: %v", err))
		}
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusGatewayTimeout:
		// PUGREST.ServerBusy and PUGREST.Timeout: the service is shedding load.
		return false, errors.NewNetwork(fmt.Errorf("pubchem %d: %s", resp.StatusCode, faultMessage(body)))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, errors.NewInvalidRequest(faultMessage(body))
	default:
		return false, errors.NewUpstream(resp.StatusCode, faultMessage(body))
	}
}

// faultMessage extracts a readable message from a PUG REST fault body.
func faultMessage(body []byte) string {
	var f fault
	if err := json.Unmarshal(body, &f); err == nil && f.Fault.Code != "" {
		msg := f.Fault.Code
		if f.Fault.Message != "" {
			msg += ": " + f.Fault.Message
		}
		if len(f.Fault.Details) > 0 {
			msg += " (" + strings.Join(f.Fault.Details, "; ") + ")"
		}
		return msg
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return "empty response"
	}
	return text
}
