package debug

import (
	"errors"
	"testing"

	"github.com/dshills/auxlab/internal/engine"
)

func TestControllerApply(t *testing.T) {
	pausedAt := func(scope Scope, line int) Outcome {
		return Outcome{
			Origin: OriginResume,
			Status: engine.StatusPaused,
			Pause:  &PauseInfo{Scope: scope, File: "foo", Line: line},
		}
	}
	paused := SessionState{Paused: true, Scope: frameScope, File: "foo", Line: 3}
	idle := SessionState{Scope: rootScope}

	tests := []struct {
		name  string
		start SessionState
		o     Outcome
		want  SessionState
	}{
		{"pause from idle", idle, pausedAt(frameScope, 3), paused},
		{"pause without scope keeps current", paused, pausedAt(Scope{}, 4),
			SessionState{Paused: true, Scope: frameScope, File: "foo", Line: 4}},
		{"evaluate error keeps pause", paused, Outcome{Origin: OriginEvaluate, Status: engine.StatusError}, paused},
		{"evaluate error keeps idle", idle, Outcome{Origin: OriginEvaluate, Status: engine.StatusError}, idle},
		{"resume error goes idle", paused, Outcome{Origin: OriginResume, Status: engine.StatusError}, idle},
		{"ok goes idle", paused, Outcome{Origin: OriginEvaluate, Status: engine.StatusOK}, idle},
		{"paused status without info goes idle", paused, Outcome{Origin: OriginResume, Status: engine.StatusPaused}, idle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(rootScope)
			if tt.start.Paused {
				c.Apply(pausedAt(tt.start.Scope, tt.start.Line))
			}
			got := c.Apply(tt.o)
			if got != tt.want {
				t.Errorf("Apply = %+v, want %+v", got, tt.want)
			}
			if c.State() != tt.want {
				t.Errorf("State = %+v, want %+v", c.State(), tt.want)
			}
			if !got.Paused && c.CurrentScope() != rootScope {
				t.Error("idle with a non-root current scope")
			}
		})
	}
}

func TestControllerStateChangedHandler(t *testing.T) {
	c := NewController(rootScope)

	var transitions [][2]SessionState
	c.SetHandlers(ControllerHandlers{
		OnStateChanged: func(old, new SessionState) {
			transitions = append(transitions, [2]SessionState{old, new})
		},
	})

	pause := Outcome{Status: engine.StatusPaused, Pause: &PauseInfo{Scope: frameScope, File: "f", Line: 1}}
	c.Apply(pause)
	c.Apply(pause)
	c.Apply(Outcome{Status: engine.StatusOK})

	if len(transitions) != 2 {
		t.Fatalf("transitions = %d, want 2", len(transitions))
	}
	if transitions[0][0].Paused || !transitions[0][1].Paused {
		t.Errorf("first transition = %+v", transitions[0])
	}
	if !transitions[1][0].Paused || transitions[1][1].Paused {
		t.Errorf("second transition = %+v", transitions[1])
	}
}

func TestControllerPauseLocation(t *testing.T) {
	c := NewController(rootScope)
	if _, _, ok := c.PauseLocation(); ok {
		t.Error("PauseLocation ok while idle")
	}
	c.Apply(Outcome{Status: engine.StatusPaused, Pause: &PauseInfo{Scope: frameScope, File: "foo", Line: 12}})
	file, line, ok := c.PauseLocation()
	if !ok || file != "foo" || line != 12 {
		t.Errorf("PauseLocation = %q, %d, %v", file, line, ok)
	}
	if got := c.State().String(); got != "paused at foo:12" {
		t.Errorf("String() = %q", got)
	}
}

func TestControllerBusy(t *testing.T) {
	c := NewController(rootScope)
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.Begin(); !errors.Is(err, ErrBusy) {
		t.Errorf("second Begin error = %v, want ErrBusy", err)
	}
	c.End()
	if err := c.Begin(); err != nil {
		t.Errorf("Begin after End: %v", err)
	}
}
