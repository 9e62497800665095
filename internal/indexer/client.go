// Package indexer reads game state from the Pirate Nation subgraph.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ligun0805/pirate-runner/internal/logger"
	"github.com/ligun0805/pirate-runner/internal/ratelimit"
)

const DefaultURL = "https://subgraph.satsuma-prod.com/208eb2825ebd/proofofplay/pn-nova/api"

// BountyComponentID is the component whose entities describe every bounty.
const BountyComponentID = "0x3ceb3cd6a633684f7095ec8b1842842250978ee3f4f137603421db15b59d137f"

type Client struct {
	url     string
	http    *http.Client
	limiter *ratelimit.Limiter
	lggr    *zap.SugaredLogger
}

func New(url string, httpClient *http.Client, limiter *ratelimit.Limiter, lggr *zap.SugaredLogger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, http: httpClient, limiter: limiter, lggr: logger.OrNop(lggr)}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Query posts a GraphQL document and decodes its data member into out.
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, ratelimit.KeyIndexer); err != nil {
			return err
		}
	}
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.Wrap(err, "encode query")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build query request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "indexer request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("indexer request: status %d", resp.StatusCode)
	}

	var r gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return errors.Wrap(err, "decode indexer response")
	}
	if len(r.Errors) > 0 {
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Message
		}
		return errors.Errorf("indexer: %s", strings.Join(msgs, "; "))
	}
	if out == nil {
		return nil
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return errors.New("indexer: empty data")
	}
	return errors.Wrap(json.Unmarshal(r.Data, out), "decode indexer data")
}

// Pirate is one pirate NFT owned by an account. Level is 0 when the indexer
// has no level trait for it.
type Pirate struct {
	ID    string // graph id, "0xcontract-tokenId"
	Name  string
	Level int
}

const piratesQuery = `query Pirates($owner: String!) {
  accounts(where: {address: $owner}) {
    nfts(where: {nftType: "pirate"}) {
      id
      name
      traits {
        value
        metadata { name }
      }
    }
  }
}`

type piratesData struct {
	Accounts []struct {
		NFTs []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Traits []struct {
				Value    json.RawMessage `json:"value"`
				Metadata struct {
					Name string `json:"name"`
				} `json:"metadata"`
			} `json:"traits"`
		} `json:"nfts"`
	} `json:"accounts"`
}

func (c *Client) Pirates(ctx context.Context, owner string) ([]Pirate, error) {
	var d piratesData
	if err := c.Query(ctx, piratesQuery, map[string]any{"owner": strings.ToLower(owner)}, &d); err != nil {
		return nil, errors.Wrapf(err, "pirates of %s", owner)
	}
	var out []Pirate
	for _, a := range d.Accounts {
		for _, n := range a.NFTs {
			p := Pirate{ID: n.ID, Name: n.Name}
			for _, t := range n.Traits {
				if t.Metadata.Name != "level" {
					continue
				}
				lvl, err := strconv.Atoi(strings.Trim(string(t.Value), `"`))
				if err != nil {
					c.lggr.Debugw("unparseable level trait", "pirate", n.ID, "value", string(t.Value))
					break
				}
				p.Level = lvl
				break
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// BountyEntity is one bounty definition with its component fields by name.
type BountyEntity struct {
	ID     string
	Fields map[string]string
}

const bountiesQuery = `query Bounties($component: String!) {
  components(where: {id: $component}) {
    id
    entities(first: 1000) {
      id
      fields { name value }
    }
  }
}`

type bountiesData struct {
	Components []struct {
		Entities []struct {
			ID     string `json:"id"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"entities"`
	} `json:"components"`
}

// Bounties returns every bounty entity in indexer order.
func (c *Client) Bounties(ctx context.Context) ([]BountyEntity, error) {
	var d bountiesData
	if err := c.Query(ctx, bountiesQuery, map[string]any{"component": BountyComponentID}, &d); err != nil {
		return nil, errors.Wrap(err, "bounty catalog")
	}
	var out []BountyEntity
	for _, comp := range d.Components {
		for _, e := range comp.Entities {
			be := BountyEntity{ID: e.ID, Fields: make(map[string]string, len(e.Fields))}
			for _, f := range e.Fields {
				be.Fields[f.Name] = f.Value
			}
			out = append(out, be)
		}
	}
	c.lggr.Debugw("bounty catalog loaded", "entities", len(out))
	return out, nil
}
