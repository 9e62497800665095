package txsubmit

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/fees"
	"github.com/ligun0805/pirate-runner/internal/logger"
)

// ErrReceiptTimeout is logged when the receipt wait bound elapses.
var ErrReceiptTimeout = errors.New("receipt wait timed out")

// Request is one contract call to be signed and sent by From.
type Request struct {
	Action   string
	From     common.Address
	To       common.Address
	Data     []byte
	Value    *big.Int
	ChainID  *big.Int // nil uses the submitter's chain
	GasLimit uint64   // > 0 pins the gas limit
}

// CallMsg is the eth_call / eth_estimateGas view of r.
func (r Request) CallMsg() ethereum.CallMsg {
	to := r.To
	return ethereum.CallMsg{From: r.From, To: &to, Data: r.Data, Value: r.Value}
}

type Client interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type SubmitterConfig struct {
	ChainID        *big.Int
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// Submitter signs, broadcasts and confirms one transaction. Callers must not
// submit concurrently for the same sender: the nonce is read from the pending
// pool immediately before signing.
type Submitter struct {
	client Client
	cfg    SubmitterConfig
	lggr   *zap.SugaredLogger
}

func NewSubmitter(client Client, cfg SubmitterConfig, lggr *zap.SugaredLogger) *Submitter {
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 3 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Submitter{client: client, cfg: cfg, lggr: logger.OrNop(lggr)}
}

// Submit sends req with plan attached. Errors before or during broadcast are
// returned as error; once the transaction is accepted the result is an Outcome.
func (s *Submitter) Submit(ctx context.Context, req Request, plan fees.Plan, key *ecdsa.PrivateKey) (Outcome, error) {
	chainID := req.ChainID
	if chainID == nil {
		chainID = s.cfg.ChainID
	}
	if chainID == nil {
		return Outcome{}, errors.New("chain id not set")
	}
	if key == nil {
		return Outcome{}, errors.New("nil signing key")
	}
	if from := chain.AddressOf(key); from != req.From {
		return Outcome{}, errors.Errorf("key for %s cannot sign for %s", from.Hex(), req.From.Hex())
	}

	nonce, err := s.client.PendingNonceAt(ctx, req.From)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "pending nonce")
	}

	to := req.To
	var tx *types.Transaction
	switch plan.Mode {
	case fees.Dynamic:
		tx = chain.BuildDynamicTx(chainID, nonce, &to, req.Value, plan.GasLimit, plan.Tip, plan.FeeCap, req.Data)
	default:
		tx = chain.BuildLegacyTx(nonce, &to, req.Value, plan.GasLimit, plan.GasPrice, req.Data)
	}
	signed, err := chain.SignTx(tx, chainID, key)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "sign")
	}
	s.lggr.Debugw("signed transaction", "action", req.Action, "raw", chain.TxAsHex(signed))

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return Outcome{}, errors.Wrap(err, "send transaction")
	}
	hash := signed.Hash()
	s.lggr.Infow("transaction sent", "action", req.Action, "from", req.From.Hex(), "nonce", nonce, "hash", hash.Hex(), "fees", plan.String())

	rcpt, err := s.waitReceipt(ctx, hash)
	if err != nil {
		s.lggr.Warnw("no receipt, outcome unknown", "hash", hash.Hex(), "err", err)
		return PendingWith(hash), nil
	}

	var out Outcome
	if rcpt.Status == types.ReceiptStatusSuccessful {
		out = Succeeded(hash, rcpt.GasUsed)
	} else {
		out = FailedWith(hash, rcpt.GasUsed, "reverted")
	}
	out.EffectiveGasPrice = rcpt.EffectiveGasPrice
	if out.EffectiveGasPrice == nil {
		out.EffectiveGasPrice = plan.MaxPrice()
	}
	return out, nil
}

// waitReceipt polls until the receipt appears or ReceiptTimeout elapses.
func (s *Submitter) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		rcpt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil && rcpt != nil {
			return rcpt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.lggr.Debugw("receipt poll error", "hash", hash.Hex(), "class", chain.ClassifyRPCError(err), "err", err)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ErrReceiptTimeout, ctx.Err().Error())
		case <-ticker.C:
		}
	}
}
