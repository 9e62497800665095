// Package quest runs quests for every pirate of an account while energy lasts.
package quest

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Command asks for up to Times runs of quest Name, each only while the
// pirate's energy is at least EnergyThreshold.
type Command struct {
	Name            string
	Times           int
	EnergyThreshold float64
}

// ParseCommands reads "name:times:energy,times:energy,...". A segment without
// a name repeats the previous segment's quest.
func ParseCommands(s string) ([]Command, error) {
	var out []Command
	prev := ""
	for i, seg := range strings.Split(s, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		parts := strings.Split(seg, ":")
		var c Command
		switch len(parts) {
		case 3:
			c.Name = strings.TrimSpace(parts[0])
			parts = parts[1:]
		case 2:
			c.Name = prev
		default:
			return nil, errors.Errorf("command %d %q: want name:times:energy", i+1, seg)
		}
		if c.Name == "" {
			return nil, errors.Errorf("command %d %q: no quest name", i+1, seg)
		}
		times, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || times < 0 {
			return nil, errors.Errorf("command %d %q: bad times", i+1, seg)
		}
		energy, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || energy < 0 {
			return nil, errors.Errorf("command %d %q: bad energy threshold", i+1, seg)
		}
		c.Times, c.EnergyThreshold = times, energy
		out = append(out, c)
		prev = c.Name
	}
	return out, nil
}
