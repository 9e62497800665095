package accounts

import (
	"crypto/ecdsa"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ligun0805/pirate-runner/internal/chain"
)

// Account is a wallet able to sign. It is read once and never mutated.
type Account struct {
	ID      string
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// RowError describes a rejected input row.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string { return "line " + strconv.Itoa(e.Line) + ": " + e.Reason }

// LoadCSV reads accounts from path. See Parse for the format.
func LoadCSV(path string) ([]Account, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open accounts")
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads rows of wallet,address,key (comma or semicolon separated, with
// or without a header). A row whose key does not derive its address, or has
// no key, is rejected and reported; other rows are still returned.
func Parse(r io.Reader) ([]Account, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read accounts")
	}
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comma = detectDelimiter(data)

	cols := columns{wallet: 0, address: 1, key: 2}
	var (
		out  []Account
		bad  []RowError
		seen = map[common.Address]bool{}
	)
	first := true
	for {
		row, e := reader.Read()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return nil, nil, errors.Wrap(e, "parse accounts")
		}
		lineNo, _ := reader.FieldPos(0)
		if blank(row) {
			continue
		}
		if first {
			first = false
			if isHeader(row) {
				cols = headerColumns(row)
				continue
			}
		}
		acct, reason := cols.account(row)
		if reason != "" {
			bad = append(bad, RowError{Line: lineNo, Reason: reason})
			continue
		}
		if seen[acct.Address] {
			bad = append(bad, RowError{Line: lineNo, Reason: "duplicate address " + acct.Address.Hex()})
			continue
		}
		seen[acct.Address] = true
		out = append(out, acct)
	}
	return out, bad, nil
}

type columns struct {
	wallet, address, key int
}

func (c columns) account(row []string) (Account, string) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	id, addrHex, keyHex := get(c.wallet), get(c.address), get(c.key)
	if keyHex == "" {
		return Account{}, "missing key"
	}
	key, err := chain.HexToECDSA(keyHex)
	if err != nil {
		return Account{}, "invalid private key"
	}
	derived := chain.AddressOf(key)
	if addrHex != "" {
		if !common.IsHexAddress(addrHex) {
			return Account{}, "invalid address " + addrHex
		}
		if common.HexToAddress(addrHex) != derived {
			return Account{}, "key does not match address " + addrHex
		}
	}
	if id == "" {
		id = derived.Hex()
	}
	return Account{ID: id, Address: derived, Key: key}, ""
}

func headerColumns(row []string) columns {
	c := columns{wallet: -1, address: -1, key: -1}
	for i, h := range row {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "wallet", "identifier", "id", "name":
			c.wallet = i
		case "address":
			c.address = i
		case "key", "private_key", "privatekey":
			c.key = i
		}
	}
	return c
}

func isHeader(row []string) bool {
	for _, h := range row {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "address", "key", "private_key", "privatekey":
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func detectDelimiter(data []byte) rune {
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if strings.Contains(l, ";") && !strings.Contains(l, ",") {
			return ';'
		}
		break
	}
	return ','
}
