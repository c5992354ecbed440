package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

func newTestState() MatchState {
	roster := []ContestantProfile{
		{ID: "c1", FullName: "Ana"},
		{ID: "c2", FullName: "Binh"},
		{ID: "c3", FullName: "Chi"},
	}
	questions := []Question{
		{ID: "q1", Order: 1, Content: "2+2?", DefaultTimeSeconds: 15},
		{ID: "q2", Order: 2, Content: "Capital of France?", DefaultTimeSeconds: 30},
	}
	return NewMatchState("m1", "final-round", roster, questions)
}

func TestApplyMutation_RejectsInvalid(t *testing.T) {
	bad := ScreenControl{ControlKey: ControlQuestion, ControlValue: ControlStart}
	unknown := ScreenControl{ControlKey: "hologram"}
	cases := []struct {
		name string
		m    Mutation
	}{
		{name: "negative time", m: Mutation{RemainingTimeSeconds: ptr(-1)}},
		{name: "negative question order", m: Mutation{CurrentQuestionOrder: ptr(-2)}},
		{name: "question order past total", m: Mutation{CurrentQuestionOrder: ptr(3)}},
		{name: "unknown control key", m: Mutation{ScreenControl: &unknown}},
		{name: "control value on non-media key", m: Mutation{ScreenControl: &bad}},
		{name: "unknown contestant", m: Mutation{Contestants: map[string]ContestantStatus{"ghost": StatusBanned}}},
		{name: "undefined status", m: Mutation{Contestants: map[string]ContestantStatus{"c1": "winner"}}},
		{name: "unknown match status", m: Mutation{Status: ptr(MatchStatus("paused"))}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestState()
			next, delta, err := ApplyMutation(s, tc.m)
			if !errors.Is(err, matcherr.ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
			if !delta.IsEmpty() {
				t.Fatalf("rejected mutation must not produce a delta: %+v", delta)
			}
			if !reflect.DeepEqual(next, s) {
				t.Fatalf("state changed on rejection")
			}
		})
	}
}

func TestApplyMutation_ReflectsFieldsAndLeavesOthers(t *testing.T) {
	s := newTestState()
	sc := ScreenControl{ControlKey: ControlVideo, ControlValue: ControlStart, Media: "https://cdn.example.com/intro.mp4"}
	m := Mutation{
		RemainingTimeSeconds: ptr(12),
		ScreenControl:        &sc,
		Contestants:          map[string]ContestantStatus{"c2": StatusEliminated},
	}

	next, delta, err := ApplyMutation(s, m)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if next.RemainingTimeSeconds != 12 || next.ScreenControl != sc || next.Contestants["c2"] != StatusEliminated {
		t.Fatalf("mutation not reflected: %+v", next)
	}
	if next.CurrentQuestionOrder != s.CurrentQuestionOrder || next.Status != s.Status {
		t.Fatalf("untouched fields changed")
	}
	if next.Contestants["c1"] != StatusNotStarted || next.Contestants["c3"] != StatusNotStarted {
		t.Fatalf("other contestants changed: %+v", next.Contestants)
	}
	if s.Contestants["c2"] != StatusNotStarted {
		t.Fatalf("input state was modified")
	}
	if delta.CurrentQuestionOrder != nil || delta.Status != nil {
		t.Fatalf("delta carries unchanged fields: %+v", delta)
	}
	if *delta.RemainingTimeSeconds != 12 || len(delta.Contestants) != 1 {
		t.Fatalf("unexpected delta: %+v", delta)
	}
}

func TestApplyMutation_NoOpYieldsEmptyDelta(t *testing.T) {
	s := newTestState()
	same := s.ScreenControl
	_, delta, err := ApplyMutation(s, Mutation{
		RemainingTimeSeconds: ptr(0),
		ScreenControl:        &same,
		Contestants:          map[string]ContestantStatus{"c1": StatusNotStarted},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !delta.IsEmpty() {
		t.Fatalf("want empty delta, got %+v", delta)
	}
}

func TestScreenControl_Validate(t *testing.T) {
	cases := []struct {
		name    string
		sc      ScreenControl
		wantErr bool
	}{
		{name: "plain key", sc: ScreenControl{ControlKey: ControlMatchDiagram}},
		{name: "image zoom", sc: ScreenControl{ControlKey: ControlImage, ControlValue: ControlZoomIn, Media: "/uploads/a.png"}},
		{name: "audio pause", sc: ScreenControl{ControlKey: ControlAudio, ControlValue: ControlPause}},
		{name: "unknown value", sc: ScreenControl{ControlKey: ControlVideo, ControlValue: "rewind"}, wantErr: true},
		{name: "value on answer", sc: ScreenControl{ControlKey: ControlAnswer, ControlValue: ControlReset}, wantErr: true},
		{name: "bad media scheme", sc: ScreenControl{ControlKey: ControlVideo, Media: "ftp://x/y.mp4"}, wantErr: true},
		{name: "empty key", sc: ScreenControl{}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sc.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
		})
	}
}

func TestReplay_MatchesSequentialApply(t *testing.T) {
	initial := newTestState()
	video := ScreenControl{ControlKey: ControlVideo, ControlValue: ControlStart}
	log := []Mutation{
		{Status: ptr(MatchOngoing), CurrentQuestionOrder: ptr(1), RemainingTimeSeconds: ptr(15)},
		{RemainingTimeSeconds: ptr(14)},
		{ScreenControl: &video},
		{Contestants: map[string]ContestantStatus{"c1": StatusConfirmed1, "c3": StatusBanned}},
		{CurrentQuestionOrder: ptr(2), RemainingTimeSeconds: ptr(30)},
		{Contestants: map[string]ContestantStatus{"c3": StatusRescued}},
	}

	s := initial
	for _, m := range log {
		var err error
		s, _, err = ApplyMutation(s, m)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	replayed, err := Replay(initial, log)
	if err != nil {
		t.Fatalf("replay err: %v", err)
	}
	if !reflect.DeepEqual(replayed, s) {
		t.Fatalf("replay diverged:\n got %+v\nwant %+v", replayed, s)
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := newTestState()
	s.Questions[0].Options = []string{"3", "4"}
	c := s.Clone()
	c.Contestants["c1"] = StatusBanned
	c.Roster[0].FullName = "changed"
	c.Questions[0].Options[0] = "5"

	if s.Contestants["c1"] != StatusNotStarted || s.Roster[0].FullName != "Ana" || s.Questions[0].Options[0] != "3" {
		t.Fatalf("clone shares memory with source")
	}
}

func TestQuestionHelpers(t *testing.T) {
	s := newTestState()
	if _, ok := s.CurrentQuestion(); ok {
		t.Fatalf("no question should be current before start")
	}
	if got := s.DefaultTimeFor(2); got != 30 {
		t.Fatalf("DefaultTimeFor(2) = %d, want 30", got)
	}
	if got := s.DefaultTimeFor(9); got != 0 {
		t.Fatalf("DefaultTimeFor(9) = %d, want 0", got)
	}
	s.CurrentQuestionOrder = 1
	q, ok := s.CurrentQuestion()
	if !ok || q.ID != "q1" {
		t.Fatalf("CurrentQuestion = %+v, %v", q, ok)
	}
}
