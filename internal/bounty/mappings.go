package bounty

import (
	"encoding/csv"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxPiratesPerBounty is the most pirates one startBounty may carry.
const MaxPiratesPerBounty = 20

// Mapping ties a human bounty name to its group on chain.
type Mapping struct {
	Name    string
	GroupID *big.Int
	Limit   int
}

// Mappings is the bounty_group_mappings table.
type Mappings struct {
	list    []Mapping
	byName  map[string]int
	byGroup map[string]int
}

func LoadMappings(path string) (*Mappings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open bounty mappings")
	}
	defer f.Close()
	m, err := ParseMappings(f)
	return m, errors.Wrapf(err, "parse %s", path)
}

// ParseMappings reads CSV with columns bounty_name,group_id,limit. limit may
// be blank.
func ParseMappings(r io.Reader) (*Mappings, error) {
	rows, err := readTable(r, "bounty_name", "group_id")
	if err != nil {
		return nil, err
	}
	m := &Mappings{byName: map[string]int{}, byGroup: map[string]int{}}
	for _, row := range rows {
		name := strings.TrimSpace(row.get("bounty_name"))
		group, ok := new(big.Int).SetString(strings.TrimSpace(row.get("group_id")), 10)
		if name == "" || !ok {
			return nil, errors.Errorf("line %d: need bounty_name and a decimal group_id", row.line)
		}
		limit := MaxPiratesPerBounty
		if s := strings.TrimSpace(row.get("limit")); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return nil, errors.Errorf("line %d: bad limit %q", row.line, s)
			}
			limit = min(n, MaxPiratesPerBounty)
		}
		key := normName(name)
		if _, dup := m.byName[key]; dup {
			continue
		}
		m.byName[key] = len(m.list)
		if _, dup := m.byGroup[group.String()]; !dup {
			m.byGroup[group.String()] = len(m.list)
		}
		m.list = append(m.list, Mapping{Name: name, GroupID: group, Limit: limit})
	}
	return m, nil
}

// ByName matches case-insensitively, ignoring surrounding space.
func (m *Mappings) ByName(name string) (Mapping, bool) {
	i, ok := m.byName[normName(name)]
	if !ok {
		return Mapping{}, false
	}
	return m.list[i], true
}

func (m *Mappings) ByGroup(group *big.Int) (Mapping, bool) {
	if group == nil {
		return Mapping{}, false
	}
	i, ok := m.byGroup[group.String()]
	if !ok {
		return Mapping{}, false
	}
	return m.list[i], true
}

// Limit is the pirate cap for group, MaxPiratesPerBounty when unmapped.
func (m *Mappings) Limit(group *big.Int) int {
	if mp, ok := m.ByGroup(group); ok {
		return mp.Limit
	}
	return MaxPiratesPerBounty
}

func (m *Mappings) All() []Mapping { return append([]Mapping(nil), m.list...) }

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

type assignKey struct {
	token string
	gen   int
}

// Assignments says which bounty each pirate should run, keyed by token id and
// generation.
type Assignments struct {
	m map[assignKey]string
}

func LoadAssignments(path string) (*Assignments, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open pirate assignments")
	}
	defer f.Close()
	a, err := ParseAssignments(f)
	return a, errors.Wrapf(err, "parse %s", path)
}

// ParseAssignments reads CSV with columns token_id,generation,bounty. Rows
// with a blank bounty are kept out of the table.
func ParseAssignments(r io.Reader) (*Assignments, error) {
	rows, err := readTable(r, "token_id", "generation", "bounty")
	if err != nil {
		return nil, err
	}
	a := &Assignments{m: map[assignKey]string{}}
	for _, row := range rows {
		tok, ok := new(big.Int).SetString(strings.TrimSpace(row.get("token_id")), 10)
		if !ok {
			return nil, errors.Errorf("line %d: bad token_id %q", row.line, row.get("token_id"))
		}
		gen, err := strconv.Atoi(strings.TrimSpace(row.get("generation")))
		if err != nil {
			return nil, errors.Errorf("line %d: bad generation %q", row.line, row.get("generation"))
		}
		if b := strings.TrimSpace(row.get("bounty")); b != "" {
			a.m[assignKey{tok.String(), gen}] = b
		}
	}
	return a, nil
}

func (a *Assignments) BountyFor(tokenID *big.Int, generation int) (string, bool) {
	if a == nil || tokenID == nil {
		return "", false
	}
	b, ok := a.m[assignKey{tokenID.String(), generation}]
	return b, ok
}

type tableRow struct {
	line int
	cols map[string]int
	rec  []string
}

func (r tableRow) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return r.rec[i]
}

// readTable reads a headed CSV and checks the required columns are present.
func readTable(r io.Reader, required ...string) ([]tableRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, errors.Errorf("missing column %q", c)
		}
	}
	var out []tableRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		out = append(out, tableRow{line: line, cols: cols, rec: rec})
	}
	return out, nil
}
