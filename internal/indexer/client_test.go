package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/pirate-runner/internal/ratelimit"
)

func serve(t *testing.T, h func(req gqlRequest) string) (*Client, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(h(req)))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client(), ratelimit.New(100, time.Second), nil), &calls
}

func TestPirates(t *testing.T) {
	c, calls := serve(t, func(req gqlRequest) string {
		assert.Equal(t, "0xabcdef", req.Variables["owner"], "owner is lower-cased")
		return `{"data":{"accounts":[{"nfts":[
			{"id":"0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a-12","name":"Pirate #12",
			 "traits":[{"value":"7","metadata":{"name":"xp"}},{"value":"30","metadata":{"name":"level"}}]},
			{"id":"0x0000000000000000000000000000000000000001-3","name":"Starter","traits":[]}
		]}]}}`
	})

	ps, err := c.Pirates(context.Background(), "0xABCDEF")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, Pirate{ID: "0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a-12", Name: "Pirate #12", Level: 30}, ps[0])
	assert.Zero(t, ps[1].Level)
	assert.Equal(t, 1, *calls)
}

func TestBounties(t *testing.T) {
	c, _ := serve(t, func(req gqlRequest) string {
		assert.Equal(t, BountyComponentID, req.Variables["component"])
		return `{"data":{"components":[{"id":"x","entities":[
			{"id":"0x3ceb-0x1a","fields":[{"name":"group_id","value":"77"},{"name":"lower_bound","value":"1"},{"name":"upper_bound","value":"5"}]}
		]}]}}`
	})

	bs, err := c.Bounties(context.Background())
	require.NoError(t, err)
	require.Len(t, bs, 1)
	assert.Equal(t, "0x3ceb-0x1a", bs[0].ID)
	assert.Equal(t, map[string]string{"group_id": "77", "lower_bound": "1", "upper_bound": "5"}, bs[0].Fields)
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"graphql errors", `{"errors":[{"message":"bad field"},{"message":"timeout"}]}`, "bad field; timeout"},
		{"null data", `{"data":null}`, "empty data"},
		{"garbage", `<html>`, "decode indexer response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := serve(t, func(gqlRequest) string { return tt.body })
			var out map[string]any
			err := c.Query(context.Background(), "{x}", nil, &out)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestQueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	err := New(srv.URL, srv.Client(), nil, nil).Query(context.Background(), "{x}", nil, nil)
	assert.ErrorContains(t, err, "status 429")
}
