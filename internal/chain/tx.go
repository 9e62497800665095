package chain

import (
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// BuildDynamicTx builds an EIP-1559 transaction.
func BuildDynamicTx(chainID *big.Int, nonce uint64, to *common.Address, value *big.Int, gasLimit uint64, tip, feeCap *big.Int, data []byte) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).Set(chainID),
		Nonce:     nonce,
		Gas:       gasLimit,
		GasTipCap: new(big.Int).Set(tip),
		GasFeeCap: new(big.Int).Set(feeCap),
		To:        to,
		Value:     orZero(value),
		Data:      data,
	})
}

// BuildLegacyTx builds a gas-price transaction.
func BuildLegacyTx(nonce uint64, to *common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(gasPrice),
		Gas:      gasLimit,
		To:       to,
		Value:    orZero(value),
		Data:     data,
	})
}

// SignTx signs with the latest signer for chainID.
func SignTx(tx *types.Transaction, chainID *big.Int, prv *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, prv)
}

// TxAsHex hex-encodes the binary form of tx.
func TxAsHex(tx *types.Transaction) string {
	b, _ := tx.MarshalBinary()
	return "0x" + hex.EncodeToString(b)
}

// HexToECDSA parses a hex private key with or without 0x.
func HexToECDSA(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if h == "" {
		return nil, errors.New("empty private key")
	}
	k, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return k, nil
}

// AddressOf derives the account address of prv.
func AddressOf(prv *ecdsa.PrivateKey) common.Address {
	return gethcrypto.PubkeyToAddress(prv.PublicKey)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
