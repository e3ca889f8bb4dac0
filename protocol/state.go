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

// Package protocol contains the state machine building blocks and errors shared
// by the peer connection protocols.
package protocol

// State is a named state of a protocol state machine
type State struct {
	Id   uint
	Name string
}

// NewState returns a new State object with the provided numeric ID and string name
func NewState(id uint, name string) State {
	return State{
		Id:   id,
		Name: name,
	}
}

// String returns the state name
func (s State) String() string {
	return s.Name
}

// StateTransition is a possible state transition for a protocol message
type StateTransition struct {
	Command   string
	NewState  State
	MatchFunc StateTransitionMatchFunc
}

// StateTransitionMatchFunc represents a function that will take a message and return a bool
// that indicates whether the message is a match for the state transition rule
type StateTransitionMatchFunc func(any) bool

// StateMapEntry represents a protocol state and the messages that move it to
// another state
type StateMapEntry struct {
	Transitions []StateTransition
	// AcceptOther allows messages without a transition. They leave the state
	// unchanged
	AcceptOther bool
}

// StateMap represents the state machine definition for a protocol
type StateMap map[State]StateMapEntry

// Next returns the state reached from the current state by the message with the
// given command. It returns false if the message is not allowed in the current
// state
func (s StateMap) Next(current State, command string, msg any) (State, bool) {
	entry, ok := s[current]
	if !ok {
		return current, false
	}
	for _, transition := range entry.Transitions {
		if transition.Command != command {
			continue
		}
		if transition.MatchFunc != nil && !transition.MatchFunc(msg) {
			continue
		}
		return transition.NewState, true
	}
	return current, entry.AcceptOther
}
