package grbl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scarif/pkg/types"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  types.StatusSnapshot
	}{
		{
			name:  "idle report",
			lines: []string{"<Idle|MPos:1.000,2.000,0.000|WPos:0.500,1.500,0.000>"},
			want: types.StatusSnapshot{
				State:           types.StateIdle,
				MachinePosition: types.Position{X: "1.000", Y: "2.000"},
				WorkPosition:    types.Position{X: "0.500", Y: "1.500"},
			},
		},
		{
			name:  "negative coordinates with terminator",
			lines: []string{"<Run|MPos:-12.250,-0.125,3.000|WPos:-2.250,9.875,3.000>\r\n"},
			want: types.StatusSnapshot{
				State:           types.StateRun,
				MachinePosition: types.Position{X: "-12.250", Y: "-0.125"},
				WorkPosition:    types.Position{X: "-2.250", Y: "9.875"},
			},
		},
		{
			name:  "report among other lines",
			lines: []string{"", "[MSG:Caution: Unlocked]", "<Alarm|MPos:0.000,0.000,0.000|WPos:1.000,1.000,0.000>", "ok"},
			want: types.StatusSnapshot{
				State:           types.StateAlarm,
				MachinePosition: types.Position{X: "0.000", Y: "0.000"},
				WorkPosition:    types.Position{X: "1.000", Y: "1.000"},
			},
		},
		{
			name:  "no report",
			lines: []string{"ok"},
			want:  types.UnknownStatus(),
		},
		{
			name:  "no lines",
			lines: nil,
			want:  types.UnknownStatus(),
		},
		{
			name:  "report without positions",
			lines: []string{"<Hold:0>"},
			want: types.StatusSnapshot{
				State:           types.StateHold,
				MachinePosition: types.UnresolvedPosition(),
				WorkPosition:    types.UnresolvedPosition(),
			},
		},
		{
			name:  "garbage in brackets",
			lines: []string{"<nonsense>"},
			want:  types.UnknownStatus(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.lines))
		})
	}
}

func TestParseStatusUsesFirstReport(t *testing.T) {
	got := ParseStatus([]string{
		"<Run|MPos:1.000,1.000,0.000|WPos:1.000,1.000,0.000>",
		"<Idle|MPos:2.000,2.000,0.000|WPos:2.000,2.000,0.000>",
	})
	assert.Equal(t, types.StateRun, got.State)
	assert.Equal(t, "1.000", got.WorkPosition.X)
}

func TestParseStatusKnowsEveryState(t *testing.T) {
	for _, state := range types.MachineStates {
		got := ParseStatus([]string{"<" + string(state) + "|MPos:0.000,0.000,0.000|WPos:0.000,0.000,0.000>"})
		assert.Equal(t, state, got.State)
	}
	assert.Equal(t, types.StateUnknown, ParseStatus([]string{"<Sleep|MPos:0.000,0.000,0.000>"}).State)
}
