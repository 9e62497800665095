package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ligun0805/pirate-runner/internal/indexer"
	"github.com/ligun0805/pirate-runner/internal/pricefeed"
	"github.com/ligun0805/pirate-runner/internal/quest"
)

// Settings keeps all configuration options.
type Settings struct {
	RPCURL  string
	ChainID int64

	GraphURL       string
	PriceURL       string
	FallbackETHUSD float64
	PriceMaxAge    time.Duration

	RateLimitCalls        int
	RateLimitWindow       time.Duration
	IndexerRateLimitCalls int

	Workers        int
	ReceiptTimeout time.Duration
	ReceiptPoll    time.Duration
	SubmitSpacing  time.Duration

	FeeMode       string
	GasMultiplier float64
	MinTipGwei    string

	BountyContract string
	QuestContract  string
	EnergyContract string
	PirateNFT      string

	AddressesCSV      string
	BountyGroupsCSV   string
	PirateBountiesCSV string
	PoliciesFile      string

	LogLevel    string
	LogJSON     bool
	MetricsAddr string
}

// LoadEnv reads .env and lets .env.local override it. Missing files are fine.
func LoadEnv() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
// Values that do not parse fall back to the default.
func Load() Settings {
	get := func(key string, def string) string {
		for _, k := range []string{key, strings.ToUpper(key)} {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(key string, def int) int {
		if n, err := strconv.Atoi(get(key, "")); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(key string, def int64) int64 {
		if n, err := strconv.ParseInt(get(key, ""), 10, 64); err == nil {
			return n
		}
		return def
	}
	getFloat := func(key string, def float64) float64 {
		if n, err := strconv.ParseFloat(get(key, ""), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n
		}
		return def
	}
	getBool := func(key string, def bool) bool {
		s := strings.ToLower(get(key, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}
	getDuration := func(key string, def time.Duration) time.Duration {
		if d, err := time.ParseDuration(get(key, "")); err == nil && d >= 0 {
			return d
		}
		return def
	}

	st := Settings{}
	st.RPCURL = get("rpc_url", "https://nova.arbitrum.io/rpc")
	st.ChainID = getInt64("chain_id", 42170)

	st.GraphURL = get("graph_url", indexer.DefaultURL)
	st.PriceURL = get("price_url", pricefeed.DefaultURL)
	st.FallbackETHUSD = getFloat("fallback_eth_usd", pricefeed.DefaultFallback)
	st.PriceMaxAge = getDuration("price_max_age", 24*time.Hour)

	st.RateLimitCalls = getInt("rate_limit_calls", 10)
	st.RateLimitWindow = getDuration("rate_limit_window", time.Second)
	st.IndexerRateLimitCalls = getInt("indexer_rate_limit_calls", 5)

	st.Workers = getInt("workers", 4)
	st.ReceiptTimeout = getDuration("receipt_timeout", 3*time.Minute)
	st.ReceiptPoll = getDuration("receipt_poll", 2*time.Second)
	st.SubmitSpacing = getDuration("submit_spacing", 2*time.Second)

	st.FeeMode = get("fee_mode", "legacy")
	st.GasMultiplier = getFloat("gas_multiplier", 1.0)
	st.MinTipGwei = get("min_tip_gwei", "0.01")

	st.BountyContract = get("bounty_contract", "")
	st.QuestContract = get("quest_contract", quest.DefaultQuestAddress.Hex())
	st.EnergyContract = get("energy_contract", quest.DefaultEnergyAddress.Hex())
	st.PirateNFT = get("pirate_nft", "0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a")

	st.AddressesCSV = get("addresses_csv", "addresses.csv")
	st.BountyGroupsCSV = get("bounty_groups_csv", "bounty_group_mappings.csv")
	st.PirateBountiesCSV = get("pirate_bounties_csv", "pirate_bounties.csv")
	st.PoliciesFile = get("policies_file", "pirate-runner.toml")

	st.LogLevel = get("log_level", "info")
	st.LogJSON = getBool("log_json", false)
	st.MetricsAddr = get("metrics_addr", "")

	return st
}
