package grbl

import (
	"regexp"
	"strings"

	"scarif/pkg/types"
)

var (
	stateRe = regexp.MustCompile(stateAlternatives(types.MachineStates))
	mPosRe  = regexp.MustCompile(`MPos:([-+]?\d*\.\d+),([-+]?\d*\.\d+),([-+]?\d*\.\d+)`)
	wPosRe  = regexp.MustCompile(`WPos:([-+]?\d*\.\d+),([-+]?\d*\.\d+),([-+]?\d*\.\d+)`)
)

func stateAlternatives(states []types.MachineState) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = regexp.QuoteMeta(string(s))
	}
	return strings.Join(names, "|")
}

func isStatusReport(line string) bool {
	return strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">")
}

// ParseStatus decodes the first <...> report in lines. Without one, or for
// fields the report lacks, the snapshot stays Unknown / unresolved. Z is
// discarded.
func ParseStatus(lines []string) types.StatusSnapshot {
	status := types.UnknownStatus()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !isStatusReport(line) {
			continue
		}
		if state := stateRe.FindString(line); state != "" {
			status.State = types.MachineState(state)
		}
		if m := mPosRe.FindStringSubmatch(line); m != nil {
			status.MachinePosition = types.Position{X: m[1], Y: m[2]}
		}
		if m := wPosRe.FindStringSubmatch(line); m != nil {
			status.WorkPosition = types.Position{X: m[1], Y: m[2]}
		}
		break
	}
	return status
}
