package orchestrator

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

// Entry is one terminal outcome produced for an account.
type Entry struct {
	Action  string
	Kind    txsubmit.Kind
	Address common.Address
}

// Note is a non-transaction observation worth listing in the summary, such as
// a bounty that is still pending for an address.
type Note struct {
	Topic   string
	Address common.Address
}

// Report is what one account's unit of work hands back.
type Report struct {
	Entries []Entry
	Notes   []Note
}

func (r *Report) Add(action string, out txsubmit.Outcome, addr common.Address) {
	r.Entries = append(r.Entries, Entry{Action: action, Kind: out.Kind, Address: addr})
}

func (r *Report) Note(topic string, addr common.Address) {
	r.Notes = append(r.Notes, Note{Topic: topic, Address: addr})
}

// Counts per outcome kind for one action.
type Counts struct {
	Succeeded int
	Failed    int
	Pending   int
	Aborted   int
}

func (c Counts) Total() int { return c.Succeeded + c.Failed + c.Pending + c.Aborted }

func (c *Counts) add(k txsubmit.Kind, n int) {
	switch k {
	case txsubmit.Success:
		c.Succeeded += n
	case txsubmit.Failed:
		c.Failed += n
	case txsubmit.Pending:
		c.Pending += n
	case txsubmit.Aborted:
		c.Aborted += n
	}
}

type actionKind struct {
	action string
	kind   txsubmit.Kind
}

type addrSet map[common.Address]struct{}

// Summary aggregates reports. Every operation is a sum or a set union, so the
// result does not depend on the order reports arrive in.
type Summary struct {
	mu       sync.Mutex
	counts   map[string]*Counts
	addrs    map[actionKind]addrSet
	notes    map[string]addrSet
	failed   addrSet
	accounts int
}

func NewSummary() *Summary {
	return &Summary{
		counts: map[string]*Counts{},
		addrs:  map[actionKind]addrSet{},
		notes:  map[string]addrSet{},
		failed: addrSet{},
	}
}

// Record folds one account's report into the summary.
func (s *Summary) Record(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts++
	s.fold(r)
}

// RecordFailure marks an account whose unit of work errored or panicked.
// Outcomes it produced before failing are still counted.
func (s *Summary) RecordFailure(addr common.Address, partial Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts++
	s.failed[addr] = struct{}{}
	s.fold(partial)
}

func (s *Summary) fold(r Report) {
	for _, e := range r.Entries {
		c := s.counts[e.Action]
		if c == nil {
			c = &Counts{}
			s.counts[e.Action] = c
		}
		c.add(e.Kind, 1)
		insert(s.addrs, actionKind{e.Action, e.Kind}, e.Address)
	}
	for _, n := range r.Notes {
		insert(s.notes, n.Topic, n.Address)
	}
}

// Merge adds other into s. other is snapshotted first so two summaries can
// merge into each other concurrently.
func (s *Summary) Merge(other *Summary) {
	if other == nil || other == s {
		return
	}
	snap := other.snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts += snap.accounts
	for action, c := range snap.counts {
		mine := s.counts[action]
		if mine == nil {
			mine = &Counts{}
			s.counts[action] = mine
		}
		mine.Succeeded += c.Succeeded
		mine.Failed += c.Failed
		mine.Pending += c.Pending
		mine.Aborted += c.Aborted
	}
	for k, set := range snap.addrs {
		for a := range set {
			insert(s.addrs, k, a)
		}
	}
	for topic, set := range snap.notes {
		for a := range set {
			insert(s.notes, topic, a)
		}
	}
	for a := range snap.failed {
		s.failed[a] = struct{}{}
	}
}

func (s *Summary) snapshot() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := NewSummary()
	out.accounts = s.accounts
	for action, c := range s.counts {
		cc := *c
		out.counts[action] = &cc
	}
	for k, set := range s.addrs {
		for a := range set {
			insert(out.addrs, k, a)
		}
	}
	for topic, set := range s.notes {
		for a := range set {
			insert(out.notes, topic, a)
		}
	}
	for a := range s.failed {
		out.failed[a] = struct{}{}
	}
	return out
}

func (s *Summary) Counts(action string) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.counts[action]; c != nil {
		return *c
	}
	return Counts{}
}

// Actions returns the recorded action names, sorted.
func (s *Summary) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.counts))
	for a := range s.counts {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Addresses returns the sorted, distinct addresses with outcome k for action.
func (s *Summary) Addresses(action string, k txsubmit.Kind) []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.addrs[actionKind{action, k}])
}

// Topics returns the note topics, sorted.
func (s *Summary) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.notes))
	for t := range s.notes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *Summary) Noted(topic string) []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.notes[topic])
}

// FailedAccounts lists accounts whose work errored or panicked.
func (s *Summary) FailedAccounts() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.failed)
}

// Accounts is the number of processed accounts, failed ones included.
func (s *Summary) Accounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts
}

func insert[K comparable](m map[K]addrSet, k K, a common.Address) {
	set := m[k]
	if set == nil {
		set = addrSet{}
		m[k] = set
	}
	set[a] = struct{}{}
}

func sorted(set addrSet) []common.Address {
	out := make([]common.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
