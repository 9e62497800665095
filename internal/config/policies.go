package config

import (
	"bytes"
	"math/big"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/ligun0805/pirate-runner/internal/bounty"
	"github.com/ligun0805/pirate-runner/internal/fees"
	"github.com/ligun0805/pirate-runner/internal/quest"
	"github.com/ligun0805/pirate-runner/internal/retry"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

// QuestGasLimit is the fixed gas limit quests are sent with.
const QuestGasLimit = 850000

// Policy is the submission budget of one action.
type Policy struct {
	MaxUSD     float64
	Retries    uint
	RetryDelay time.Duration
	GasLimit   uint64
	FeeMode    fees.Mode
}

func (p Policy) TxPolicy() txsubmit.Policy {
	return txsubmit.Policy{
		CeilingUSD: p.MaxUSD,
		Retry:      retry.Policy{MaxRetries: p.Retries, Delay: p.RetryDelay},
		Mode:       p.FeeMode,
		GasLimit:   p.GasLimit,
	}
}

// Policies is the parsed policies file merged over the built-in defaults.
type Policies struct {
	Actions map[string]Policy
	// Quests holds [quests.<name>] entries in name order.
	Quests []quest.Quest
}

// DefaultActions are used for any action the policies file leaves out.
func DefaultActions(mode fees.Mode) map[string]Policy {
	return map[string]Policy{
		bounty.ActionStart: {MaxUSD: 0.08, Retries: 4, RetryDelay: 15 * time.Second, FeeMode: mode},
		bounty.ActionEnd:   {MaxUSD: 0.05, Retries: 4, RetryDelay: 15 * time.Second, FeeMode: mode},
		quest.ActionStart:  {MaxUSD: 0.05, Retries: 4, RetryDelay: 15 * time.Second, GasLimit: QuestGasLimit, FeeMode: mode},
	}
}

// For returns the policy of action. Unknown actions get a single attempt
// with no cost ceiling.
func (p Policies) For(action string) txsubmit.Policy {
	return p.Actions[action].TxPolicy()
}

// QuestCatalog returns the default quest menu with the file's quests added.
// A file entry replaces a default quest of the same name.
func (p Policies) QuestCatalog(pirateNFT common.Address) *quest.Catalog {
	return quest.NewCatalog(append(quest.DefaultQuests(pirateNFT), p.Quests...)...)
}

type actionFile struct {
	MaxUSD     *float64 `toml:"max_usd"`
	Retries    *uint    `toml:"retries"`
	RetryDelay string   `toml:"retry_delay"`
	GasLimit   *uint64  `toml:"gas_limit"`
	FeeMode    string   `toml:"fee_mode"`
}

type inputFile struct {
	Type     string `toml:"type"`
	Contract string `toml:"contract"`
	TokenID  string `toml:"token_id"`
	Amount   string `toml:"amount"`
}

type questFile struct {
	ID     uint32      `toml:"id"`
	Inputs []inputFile `toml:"inputs"`
}

type policiesFile struct {
	Actions map[string]actionFile `toml:"actions"`
	Quests  map[string]questFile  `toml:"quests"`
}

// LoadPolicies reads path. A missing file yields the defaults.
func LoadPolicies(path string, mode fees.Mode) (Policies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Policies{Actions: DefaultActions(mode)}, nil
		}
		return Policies{}, errors.Wrapf(err, "read %s", path)
	}
	p, err := ParsePolicies(data, mode)
	return p, errors.Wrapf(err, "parse %s", path)
}

// ParsePolicies decodes a policies document; unknown keys are rejected.
func ParsePolicies(data []byte, mode fees.Mode) (Policies, error) {
	var f policiesFile
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&f); err != nil {
		return Policies{}, err
	}

	out := Policies{Actions: DefaultActions(mode)}
	for name, a := range f.Actions {
		p := out.Actions[name]
		if _, known := out.Actions[name]; !known {
			p.FeeMode = mode
		}
		if a.MaxUSD != nil {
			if *a.MaxUSD < 0 {
				return Policies{}, errors.Errorf("actions.%s: negative max_usd", name)
			}
			p.MaxUSD = *a.MaxUSD
		}
		if a.Retries != nil {
			p.Retries = *a.Retries
		}
		if a.RetryDelay != "" {
			d, err := time.ParseDuration(a.RetryDelay)
			if err != nil || d < 0 {
				return Policies{}, errors.Errorf("actions.%s: bad retry_delay %q", name, a.RetryDelay)
			}
			p.RetryDelay = d
		}
		if a.GasLimit != nil {
			p.GasLimit = *a.GasLimit
		}
		if a.FeeMode != "" {
			m, err := fees.ParseMode(a.FeeMode)
			if err != nil {
				return Policies{}, errors.Wrapf(err, "actions.%s", name)
			}
			p.FeeMode = m
		}
		out.Actions[name] = p
	}

	names := make([]string, 0, len(f.Quests))
	for name := range f.Quests {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		q, err := f.Quests[name].quest(name)
		if err != nil {
			return Policies{}, errors.Wrapf(err, "quests.%s", name)
		}
		out.Quests = append(out.Quests, q)
	}
	return out, nil
}

func (q questFile) quest(name string) (quest.Quest, error) {
	if q.ID == 0 {
		return quest.Quest{}, errors.New("missing id")
	}
	if len(q.Inputs) == 0 {
		return quest.Quest{}, errors.New("no inputs")
	}
	out := quest.Quest{ID: q.ID, Name: name, Inputs: make([]quest.Input, len(q.Inputs))}
	for i, in := range q.Inputs {
		tt, err := quest.ParseTokenType(in.Type)
		if err != nil {
			return quest.Quest{}, errors.Wrapf(err, "input %d", i)
		}
		if in.Contract != "" && !common.IsHexAddress(in.Contract) {
			return quest.Quest{}, errors.Errorf("input %d: bad contract %q", i, in.Contract)
		}
		id, ok := decimal(in.TokenID, 0)
		if !ok {
			return quest.Quest{}, errors.Errorf("input %d: bad token_id %q", i, in.TokenID)
		}
		amount, ok := decimal(in.Amount, 1)
		if !ok {
			return quest.Quest{}, errors.Errorf("input %d: bad amount %q", i, in.Amount)
		}
		out.Inputs[i] = quest.Input{Type: tt, Contract: common.HexToAddress(in.Contract), TokenID: id, Amount: amount}
	}
	return out, nil
}

// decimal parses a non-negative base-10 integer; blank gives def.
func decimal(s string, def int64) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(def), true
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}
