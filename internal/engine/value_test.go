package engine

import "testing"

func TestValueKind(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		kind  Kind
		len   int
	}{
		{"null", Null{}, KindNull, 0},
		{"scalar", Scalar{V: 2}, KindScalar, 1},
		{"vector", Signal{Channels: []Channel{{Samples: []float64{1, 2, 3}}}}, KindVector, 3},
		{"audio", Signal{Channels: []Channel{{Samples: []float64{0.5}}}, SampleRate: 8000, Audio: true}, KindAudio, 1},
		{"empty signal", Signal{}, KindVector, 0},
		{"text", Text{S: "héllo"}, KindText, 5},
		{"binary", Binary{Data: []byte{1, 2}}, KindBinary, 2},
		{"cell", Cell{Items: []Value{Scalar{}, Text{}}}, KindCell, 2},
		{"struct", Struct{Fields: []Field{{Name: "a", Value: Scalar{}}}}, KindStruct, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Kind(); got != tt.kind {
				t.Errorf("Kind() = %v, want %v", got, tt.kind)
			}
			if got := tt.value.Len(); got != tt.len {
				t.Errorf("Len() = %d, want %d", got, tt.len)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	opts := PreviewOptions{Precision: 6, LimitX: 3, LimitStr: 4}

	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"null", Null{}, "[]"},
		{"scalar", Scalar{V: 1.0 / 3}, "0.333333"},
		{"integer", Scalar{V: 42}, "42"},
		{"short vector", Signal{Channels: []Channel{{Samples: []float64{1, 2}}}}, "[1 2]"},
		{"long vector", Signal{Channels: []Channel{{Samples: []float64{1, 2, 3, 4}}}}, "[1 2 3 ...]"},
		{"stereo audio", Signal{
			Channels:   []Channel{{Samples: []float64{1}}, {Samples: []float64{2}}},
			SampleRate: 22050,
			Audio:      true,
		}, "[1]; [2] (audio, fs=22050)"},
		{"text", Text{S: "abc"}, `"abc"`},
		{"long text", Text{S: "abcdef"}, `"abcd..."`},
		{"binary", Binary{Data: make([]byte, 7)}, "<7 bytes>"},
		{"cell", Cell{Items: []Value{Null{}}}, "{1 items}"},
		{"struct", Struct{Fields: []Field{{Name: "x"}, {Name: "y"}}}, "struct{x, y}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.value, opts); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStructFieldByName(t *testing.T) {
	s := Struct{Fields: []Field{{Name: "fs", Value: Scalar{V: 8000}}}}

	v, ok := s.FieldByName("fs")
	if !ok {
		t.Fatal("expected field fs")
	}
	if v.(Scalar).V != 8000 {
		t.Errorf("fs = %v, want 8000", v)
	}
	if _, ok := s.FieldByName("missing"); ok {
		t.Error("expected missing field to be absent")
	}
}

func TestStatusAndActionStrings(t *testing.T) {
	if StatusPaused.String() != "paused" {
		t.Errorf("StatusPaused.String() = %q", StatusPaused.String())
	}
	if ActionStepOut.String() != "step-out" {
		t.Errorf("ActionStepOut.String() = %q", ActionStepOut.String())
	}
	if DebugAction(42).String() != "action(42)" {
		t.Errorf("unknown action string = %q", DebugAction(42).String())
	}
}
