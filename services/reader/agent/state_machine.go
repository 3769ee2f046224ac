// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"fmt"
	"time"
)

// StateMachine validates run state transitions.
//
// The transition graph:
//
//	INIT → PREVIEW                        : Documents normalized
//	PREVIEW → EXPLORING                   : Previews built, prompt assembled
//	EXPLORING → MODEL_CALL                : Step started
//	MODEL_CALL → TOOL_DISPATCH            : Engine requested tools
//	MODEL_CALL → ANSWERED                 : Engine answered without tools
//	TOOL_DISPATCH → MODEL_CALL            : Tool results folded back, next step
//	TOOL_DISPATCH → ITERATION_CAP_REACHED : Step cap hit
//	* → FAILED                            : Any non-terminal state
//
// StateMachine holds no run state and is safe for concurrent use.
type StateMachine struct {
	transitions map[RunState]map[RunState]bool
}

// NewStateMachine creates the exploration state machine.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{transitions: make(map[RunState]map[RunState]bool)}
	for _, s := range AllStates() {
		sm.transitions[s] = make(map[RunState]bool)
		if !s.IsTerminal() {
			sm.addTransition(s, StateFailed)
		}
	}

	sm.addTransition(StateInit, StatePreview)
	sm.addTransition(StatePreview, StateExploring)
	sm.addTransition(StateExploring, StateModelCall)
	sm.addTransition(StateModelCall, StateToolDispatch)
	sm.addTransition(StateModelCall, StateAnswered)
	sm.addTransition(StateToolDispatch, StateModelCall)
	sm.addTransition(StateToolDispatch, StateIterationCapReached)
	return sm
}

func (sm *StateMachine) addTransition(from, to RunState) {
	sm.transitions[from][to] = true
}

// CanTransition reports whether from → to is allowed.
func (sm *StateMachine) CanTransition(from, to RunState) bool {
	return sm.transitions[from][to]
}

// tracker follows one run through the machine.
type tracker struct {
	sm      *StateMachine
	current RunState
	history []Transition
}

func newTracker(sm *StateMachine) *tracker {
	return &tracker{sm: sm, current: StateInit}
}

// to moves the run to next or returns ErrInvalidTransition.
func (t *tracker) to(next RunState, step int, reason string) error {
	if !t.sm.CanTransition(t.current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.current, next)
	}
	t.history = append(t.history, Transition{
		From:   t.current,
		To:     next,
		Step:   step,
		Reason: reason,
		At:     time.Now(),
	})
	t.current = next
	return nil
}

// fail moves the run to FAILED unless it is already terminal.
func (t *tracker) fail(step int, reason string) {
	if t.current.IsTerminal() {
		return
	}
	_ = t.to(StateFailed, step, reason)
}
