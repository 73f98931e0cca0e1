package main

import (
	"testing"

	"github.com/kapitanov/chip8/internal/statsview"
	"github.com/retroenv/retrogolib/assert"
)

func TestRootCommand_StatsviewAddress(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "off by default", args: nil, want: ""},
		{name: "bare flag", args: []string{"--statsview"}, want: statsview.DefaultAddress},
		{name: "explicit", args: []string{"--statsview=localhost:9000"}, want: "localhost:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			assert.NoError(t, cmd.ParseFlags(tt.args))

			addr, err := cmd.Flags().GetString("statsview")
			assert.NoError(t, err)
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestRootCommand_RejectsClockRate(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--hz", "0", "main.go"})
	assert.True(t, cmd.Execute() != nil)
}
