package txsubmit

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind tags the terminal result of a transaction request.
type Kind int

const (
	// Success: mined with receipt status 1.
	Success Kind = iota + 1
	// Failed: mined, but the receipt status is not 1. Gas was spent.
	Failed
	// Pending: broadcast, but no receipt within the wait bound. Funds may or may not be spent.
	Pending
	// Aborted: nothing was mined. Either never sent or rejected before inclusion.
	Aborted
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Pending:
		return "pending"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Kinds lists every Kind in display order.
var Kinds = []Kind{Success, Failed, Pending, Aborted}

// Outcome is returned by value; callers switch on Kind.
type Outcome struct {
	Kind              Kind
	Hash              common.Hash
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Reason            string
	// CostUSD is computed from GasUsed after mining, for reporting.
	CostUSD  float64
	Attempts uint
}

func Succeeded(hash common.Hash, gasUsed uint64) Outcome {
	return Outcome{Kind: Success, Hash: hash, GasUsed: gasUsed}
}

func FailedWith(hash common.Hash, gasUsed uint64, reason string) Outcome {
	return Outcome{Kind: Failed, Hash: hash, GasUsed: gasUsed, Reason: reason}
}

func PendingWith(hash common.Hash) Outcome {
	return Outcome{Kind: Pending, Hash: hash, Reason: "receipt not observed"}
}

func AbortedWith(reason string) Outcome {
	return Outcome{Kind: Aborted, Reason: reason}
}

// Mined reports whether the transaction made it into a block.
func (o Outcome) Mined() bool {
	return o.Kind == Success || o.Kind == Failed
}

func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		return fmt.Sprintf("success %s gas=%d $%.4f", o.Hash.Hex(), o.GasUsed, o.CostUSD)
	case Failed:
		return fmt.Sprintf("failed %s: %s", o.Hash.Hex(), o.Reason)
	case Pending:
		return fmt.Sprintf("pending %s", o.Hash.Hex())
	default:
		return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
	}
}
