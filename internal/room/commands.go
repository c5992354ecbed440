package room

import (
	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

// Command is one inbound instruction. Name is the socket event it came from.
type Command interface {
	Name() string
}

type StartMatch struct{}

type ShowQuestion struct{ Order int }

type TimerPlay struct{}

type TimerPause struct{}

// TimerReset re-arms the countdown. Nil Seconds means the current question's
// default time.
type TimerReset struct{ Seconds *int }

type UpdateScreen struct{ Control engine.ScreenControl }

type UpdateStatuses struct {
	IDs    []string
	Status engine.ContestantStatus
}

// SaveStatistics persists the current standings to the Match Data API.
type SaveStatistics struct{}

type SelectRescue struct {
	RescueID      string
	QuestionOrder int
	Candidates    []string
}

// ActivateRescue opens voting. A positive VotingSeconds closes it
// automatically when the window runs out.
type ActivateRescue struct {
	RescueID      string
	VotingSeconds int
}

type CloseRescue struct{ RescueID string }

type Vote struct {
	RescueID string
	Option   string
}

type TallyRescue struct{ RescueID string }

type ShowQR struct{ RescueID string }

type ShowChart struct{ RescueID string }

type HideAudience struct{}

type WinGold struct{ ContestantID string }

type MarkEliminated struct{ IDs []string }

type Awards struct{ Awards []types.Award }

type ListResults struct{}

func (StartMatch) Name() string     { return "match:start" }
func (ShowQuestion) Name() string   { return "match:showQuestion" }
func (TimerPlay) Name() string      { return "timer:play" }
func (TimerPause) Name() string     { return "timer:pause" }
func (TimerReset) Name() string     { return "timer:reset" }
func (UpdateScreen) Name() string   { return "screen:update" }
func (UpdateStatuses) Name() string { return "contestant:status-update-admin" }
func (SaveStatistics) Name() string { return "statistics:update" }
func (SelectRescue) Name() string   { return "rescue:select" }
func (ActivateRescue) Name() string { return "rescue:activate" }
func (CloseRescue) Name() string    { return "rescue:close" }
func (Vote) Name() string           { return "rescue:vote" }
func (TallyRescue) Name() string    { return "rescue:tally" }
func (ShowQR) Name() string         { return "audience:showQR" }
func (ShowChart) Name() string      { return "audience:showChart" }
func (HideAudience) Name() string   { return "audience:hide" }
func (WinGold) Name() string        { return "update:winGold" }
func (MarkEliminated) Name() string { return "update:Eliminated" }
func (Awards) Name() string         { return "update:award" }
func (ListResults) Name() string    { return "listResult" }

// permitted reports whether role may issue cmd. Everything but voting and
// reading a tally is reserved for the operator console.
func permitted(role registry.Role, cmd Command) bool {
	switch cmd.(type) {
	case Vote, TallyRescue:
		return role.Valid()
	}
	return role == registry.RoleAdmin
}
