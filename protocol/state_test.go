// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol_test

import (
	"testing"

	"github.com/blinklabs-io/relaygw/protocol"
	"github.com/stretchr/testify/assert"
)

var (
	stateIdle   = protocol.NewState(1, "Idle")
	stateBusy   = protocol.NewState(2, "Busy")
	stateClosed = protocol.NewState(3, "Closed")
)

var testStateMap = protocol.StateMap{
	stateIdle: protocol.StateMapEntry{
		Transitions: []protocol.StateTransition{
			{
				Command:  "start",
				NewState: stateBusy,
				MatchFunc: func(msg any) bool {
					v, ok := msg.(bool)
					return ok && v
				},
			},
			{
				Command:  "close",
				NewState: stateClosed,
			},
		},
	},
	stateBusy: protocol.StateMapEntry{
		Transitions: []protocol.StateTransition{
			{
				Command:  "close",
				NewState: stateClosed,
			},
		},
		AcceptOther: true,
	},
}

func TestStateMapNext(t *testing.T) {
	testDefs := []struct {
		name     string
		current  protocol.State
		command  string
		msg      any
		expected protocol.State
		ok       bool
	}{
		{"matching transition", stateIdle, "start", true, stateBusy, true},
		{"match func rejects", stateIdle, "start", false, stateIdle, false},
		{"unconditional transition", stateIdle, "close", nil, stateClosed, true},
		{"unknown command", stateIdle, "ping", nil, stateIdle, false},
		{"accept other keeps state", stateBusy, "ping", nil, stateBusy, true},
		{"state without entry", stateClosed, "close", nil, stateClosed, false},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			next, ok := testStateMap.Next(testDef.current, testDef.command, testDef.msg)
			assert.Equal(t, testDef.ok, ok)
			assert.Equal(t, testDef.expected, next)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Busy", stateBusy.String())
}
