package accounts

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Select keeps the accounts whose wallet number is in ranges, a list such as
// "1-10,15,88-92". The wallet number is the trailing digits of the ID, so
// "w12" and "12" both match 12. An empty ranges keeps everything.
func Select(accts []Account, ranges string) ([]Account, error) {
	if strings.TrimSpace(ranges) == "" {
		return accts, nil
	}
	spans, err := parseRanges(ranges)
	if err != nil {
		return nil, err
	}
	var out []Account
	for _, a := range accts {
		n, ok := walletNumber(a.ID)
		if !ok {
			continue
		}
		for _, s := range spans {
			if n >= s[0] && n <= s[1] {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func parseRanges(s string) ([][2]int, error) {
	var out [][2]int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, errors.Errorf("bad wallet range %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || b < a {
				return nil, errors.Errorf("bad wallet range %q", part)
			}
		}
		out = append(out, [2]int{a, b})
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no wallets in %q", s)
	}
	return out, nil
}

func walletNumber(id string) (int, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return 0, false
	}
	n, err := strconv.Atoi(id[i:])
	return n, err == nil
}
