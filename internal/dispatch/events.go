package dispatch

import (
	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/rescue"
	"github.com/DoyleJ11/quiz-match-backend/internal/roster"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

// Event is one of the outbound messages below. The set is closed: only this
// package can add variants.
type Event interface {
	Name() string
	Validate() error
	isEvent()
}

var audienceDisplay = []registry.Role{registry.RoleScreen, registry.RoleAudience}

// audienceOnly is embedded by events that never reach the operator console.
type audienceOnly struct{}

func (audienceOnly) roles() []registry.Role { return audienceDisplay }

type scoped interface{ roles() []registry.Role }

// Roles returns the roles an event goes to by default. Nil means everyone.
func Roles(ev Event) []registry.Role {
	if s, ok := ev.(scoped); ok {
		return s.roles()
	}
	return nil
}

type ScreenUpdate struct {
	Match        string              `json:"match"`
	ControlKey   engine.ControlKey   `json:"controlKey"`
	ControlValue engine.ControlValue `json:"controlValue,omitempty"`
	Media        string              `json:"media,omitempty"`
}

func (ScreenUpdate) Name() string { return "screen:update" }
func (e ScreenUpdate) Validate() error {
	if e.Match == "" {
		return matcherr.Validation("screen:update: match is required")
	}
	return engine.ScreenControl{ControlKey: e.ControlKey, ControlValue: e.ControlValue, Media: e.Media}.Validate()
}

type TimerUpdate struct {
	TimeRemaining int `json:"timeRemaining"`
}

func (TimerUpdate) Name() string { return "timer:update" }
func (e TimerUpdate) Validate() error {
	if e.TimeRemaining < 0 {
		return matcherr.Validation("timer:update: negative time %d", e.TimeRemaining)
	}
	return nil
}

type TimerEnded struct{}

func (TimerEnded) Name() string    { return "timer:ended" }
func (TimerEnded) Validate() error { return nil }

// CurrentQuestion is the catch-up snapshot a client gets on join.
type CurrentQuestion struct {
	MatchInfo       types.MatchInfo  `json:"matchInfo"`
	CurrentQuestion *engine.Question `json:"currentQuestion"`
	ListContestant  []roster.Entry   `json:"ListContestant"`
}

func (CurrentQuestion) Name() string { return "currentQuestion:get" }
func (e CurrentQuestion) Validate() error {
	if e.MatchInfo.MatchID == "" {
		return matcherr.Validation("currentQuestion:get: matchInfo.matchId is required")
	}
	if e.ListContestant == nil {
		return matcherr.Validation("currentQuestion:get: ListContestant is required")
	}
	return nil
}

// SnapshotOf renders the catch-up payload for s.
func SnapshotOf(s engine.MatchState) CurrentQuestion {
	ev := CurrentQuestion{
		MatchInfo:      types.MatchInfoOf(s),
		ListContestant: roster.List(s),
	}
	if q, ok := s.CurrentQuestion(); ok {
		ev.CurrentQuestion = &q
	}
	return ev
}

type ContestantStatusUpdate struct {
	ListContestant []roster.Entry `json:"ListContestant"`
}

func (ContestantStatusUpdate) Name() string { return "contestant:status-update" }
func (e ContestantStatusUpdate) Validate() error {
	if e.ListContestant == nil {
		return matcherr.Validation("contestant:status-update: ListContestant is required")
	}
	return nil
}

type MatchStarted struct {
	MatchID         string             `json:"matchId"`
	CurrentQuestion int                `json:"currentQuestion"`
	TimeRemaining   int                `json:"timeRemaining"`
	Status          engine.MatchStatus `json:"status"`
	DefaultTime     int                `json:"defaultTime"`
}

func (MatchStarted) Name() string { return "match:started" }
func (e MatchStarted) Validate() error {
	switch {
	case e.MatchID == "":
		return matcherr.Validation("match:started: matchId is required")
	case !e.Status.Valid():
		return matcherr.Validation("match:started: unknown status %q", e.Status)
	case e.TimeRemaining < 0 || e.DefaultTime < 0:
		return matcherr.Validation("match:started: negative time")
	}
	return nil
}

type QuestionShown struct {
	CurrentQuestion engine.Question `json:"currentQuestion"`
	MatchID         string          `json:"matchId"`
	TotalQuestions  int             `json:"totalQuestions"`
}

func (QuestionShown) Name() string { return "match:questionShown" }
func (e QuestionShown) Validate() error {
	if e.MatchID == "" {
		return matcherr.Validation("match:questionShown: matchId is required")
	}
	if e.CurrentQuestion.Order < 1 || (e.TotalQuestions > 0 && e.CurrentQuestion.Order > e.TotalQuestions) {
		return matcherr.Validation("match:questionShown: question order %d out of range", e.CurrentQuestion.Order)
	}
	return nil
}

type WinGold struct {
	MatchID    string       `json:"matchId"`
	Contestant roster.Entry `json:"contestant"`
}

func (WinGold) Name() string { return "update:winGold" }
func (e WinGold) Validate() error {
	if e.MatchID == "" || e.Contestant.ID == "" {
		return matcherr.Validation("update:winGold: matchId and contestant are required")
	}
	return nil
}

type Eliminated struct {
	MatchID        string         `json:"matchId"`
	ListContestant []roster.Entry `json:"ListContestant"`
}

func (Eliminated) Name() string { return "update:Eliminated" }
func (e Eliminated) Validate() error {
	if e.MatchID == "" || e.ListContestant == nil {
		return matcherr.Validation("update:Eliminated: matchId and ListContestant are required")
	}
	return nil
}

type AwardUpdate struct {
	MatchID string        `json:"matchId"`
	Awards  []types.Award `json:"awards"`
}

func (AwardUpdate) Name() string { return "update:award" }
func (e AwardUpdate) Validate() error {
	if e.MatchID == "" {
		return matcherr.Validation("update:award: matchId is required")
	}
	for _, a := range e.Awards {
		if a.ContestantID == "" || a.Title == "" {
			return matcherr.Validation("update:award: every award needs a contestant and a title")
		}
	}
	return nil
}

type ListResult struct {
	MatchID string         `json:"matchId"`
	Results []roster.Entry `json:"results"`
}

func (ListResult) Name() string { return "listResult" }
func (e ListResult) Validate() error {
	if e.MatchID == "" || e.Results == nil {
		return matcherr.Validation("listResult: matchId and results are required")
	}
	return nil
}

type ShowQrRescue struct {
	MatchSlug     string `json:"matchSlug"`
	RescueID      string `json:"rescueId"`
	QuestionOrder *int   `json:"questionOrder"`
}

func (ShowQrRescue) Name() string { return "showQrRescue" }
func (e ShowQrRescue) Validate() error {
	if e.MatchSlug == "" || e.RescueID == "" {
		return matcherr.Validation("showQrRescue: matchSlug and rescueId are required")
	}
	return nil
}

type ShowQrChart struct {
	RescueID string               `json:"rescueId"`
	Tally    []rescue.OptionCount `json:"tally"`
}

func (ShowQrChart) Name() string { return "showQrChart" }
func (e ShowQrChart) Validate() error { return validTally("showQrChart", e.RescueID, e.Tally) }

type RescueTimerStart struct {
	RescueID string `json:"rescueId"`
	Seconds  int    `json:"seconds"`
}

func (RescueTimerStart) Name() string { return "timerStart:Rescue" }
func (e RescueTimerStart) Validate() error {
	if e.RescueID == "" || e.Seconds <= 0 {
		return matcherr.Validation("timerStart:Rescue: rescueId and positive seconds are required")
	}
	return nil
}

type RescueTimerEnd struct {
	RescueID string `json:"rescueId"`
}

func (RescueTimerEnd) Name() string { return "timerEnd:Rescue" }
func (e RescueTimerEnd) Validate() error { return requireRescue("timerEnd:Rescue", e.RescueID) }

type RescueStatusUpdate struct {
	RescueID      string        `json:"rescueId"`
	Status        rescue.Status `json:"status"`
	QuestionOrder *int          `json:"questionOrder"`
}

func (RescueStatusUpdate) Name() string { return "rescue:updateStatus" }
func (e RescueStatusUpdate) Validate() error {
	if !e.Status.Valid() {
		return matcherr.Validation("rescue:updateStatus: unknown status %q", e.Status)
	}
	return requireRescue("rescue:updateStatus", e.RescueID)
}

type AudienceShowQR struct {
	audienceOnly
	RescueID  string `json:"rescueId"`
	MatchSlug string `json:"matchSlug"`
}

func (AudienceShowQR) Name() string { return "audience:showQR" }
func (e AudienceShowQR) Validate() error {
	if e.MatchSlug == "" {
		return matcherr.Validation("audience:showQR: matchSlug is required")
	}
	return requireRescue("audience:showQR", e.RescueID)
}

type AudienceShowChart struct {
	audienceOnly
	RescueID string `json:"rescueId"`
}

func (AudienceShowChart) Name() string      { return "audience:showChart" }
func (e AudienceShowChart) Validate() error { return requireRescue("audience:showChart", e.RescueID) }

type AudienceHide struct {
	audienceOnly
}

func (AudienceHide) Name() string    { return "audience:hide" }
func (AudienceHide) Validate() error { return nil }

// AudienceRefreshChart is pushed whenever a rescue tally changes.
type AudienceRefreshChart struct {
	audienceOnly
	RescueID string               `json:"rescueId"`
	Tally    []rescue.OptionCount `json:"tally"`
}

func (AudienceRefreshChart) Name() string { return "audience:refreshChart" }
func (e AudienceRefreshChart) Validate() error {
	return validTally("audience:refreshChart", e.RescueID, e.Tally)
}

func (ScreenUpdate) isEvent()           {}
func (TimerUpdate) isEvent()            {}
func (TimerEnded) isEvent()             {}
func (CurrentQuestion) isEvent()        {}
func (ContestantStatusUpdate) isEvent() {}
func (MatchStarted) isEvent()           {}
func (QuestionShown) isEvent()          {}
func (WinGold) isEvent()                {}
func (Eliminated) isEvent()             {}
func (AwardUpdate) isEvent()            {}
func (ListResult) isEvent()             {}
func (ShowQrRescue) isEvent()           {}
func (ShowQrChart) isEvent()            {}
func (RescueTimerStart) isEvent()       {}
func (RescueTimerEnd) isEvent()         {}
func (RescueStatusUpdate) isEvent()     {}
func (AudienceShowQR) isEvent()         {}
func (AudienceShowChart) isEvent()      {}
func (AudienceHide) isEvent()           {}
func (AudienceRefreshChart) isEvent()   {}

func requireRescue(event, rescueID string) error {
	if rescueID == "" {
		return matcherr.Validation("%s: rescueId is required", event)
	}
	return nil
}

func validTally(event, rescueID string, tally []rescue.OptionCount) error {
	if err := requireRescue(event, rescueID); err != nil {
		return err
	}
	if tally == nil {
		return matcherr.Validation("%s: tally is required", event)
	}
	for _, oc := range tally {
		if oc.Option == "" || oc.Count < 0 {
			return matcherr.Validation("%s: malformed tally entry %+v", event, oc)
		}
	}
	return nil
}
