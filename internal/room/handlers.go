package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/dispatch"
	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/rescue"
	"github.com/DoyleJ11/quiz-match-backend/internal/roster"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

// ScreenChange is the ack payload of screen:update.
type ScreenChange struct {
	ScreenControl engine.ScreenControl `json:"screenControl"`
	Changed       bool                 `json:"changed"`
}

type SaveReport struct {
	Saved int `json:"saved"`
}

func (r *Room) handle(msg Do) {
	if !permitted(msg.Role, msg.Cmd) {
		msg.Reply <- Result{Err: matcherr.Validation("role %q may not issue %s", msg.Role, msg.Cmd.Name())}
		return
	}
	if _, ok := msg.Cmd.(SaveStatistics); ok {
		r.saveStatistics(msg.Reply)
		return
	}

	data, err := r.apply(msg.Cmd)
	if err != nil {
		r.logger.Debug("command rejected",
			zap.String("command", msg.Cmd.Name()),
			zap.String("kind", matcherr.Kind(err)),
			zap.Error(err))
	}
	msg.Reply <- Result{Data: data, Err: err}
}

func (r *Room) apply(cmd Command) (any, error) {
	switch c := cmd.(type) {
	case StartMatch:
		return r.startMatch()
	case ShowQuestion:
		return r.showQuestion(c.Order)
	case TimerPlay:
		started, err := r.timer.Start()
		if err != nil {
			return nil, err
		}
		if started {
			r.publish(dispatch.TimerUpdate{TimeRemaining: r.timer.Remaining()})
		}
		return r.timerView(), nil
	case TimerPause:
		if r.timer.Pause() {
			r.publish(dispatch.TimerUpdate{TimeRemaining: r.timer.Remaining()})
		}
		return r.timerView(), nil
	case TimerReset:
		return r.resetTimer(c.Seconds)
	case UpdateScreen:
		return r.updateScreen(c.Control)
	case UpdateStatuses:
		return r.updateStatuses(c.IDs, c.Status)
	case SelectRescue:
		v, err := r.rescues.SelectCandidate(c.RescueID, c.QuestionOrder, c.Candidates)
		if err != nil {
			return nil, err
		}
		r.publish(rescueStatus(v))
		return v, nil
	case ActivateRescue:
		return r.activateRescue(c.RescueID, c.VotingSeconds)
	case CloseRescue:
		return r.closeRescue(c.RescueID)
	case Vote:
		tally, err := r.rescues.RecordVote(c.RescueID, c.Option)
		if err != nil {
			return nil, err
		}
		r.publish(dispatch.AudienceRefreshChart{RescueID: c.RescueID, Tally: tally})
		return tally, nil
	case TallyRescue:
		return r.rescues.Tally(c.RescueID)
	case ShowQR:
		if _, err := r.rescues.Get(c.RescueID); err != nil {
			return nil, err
		}
		r.publish(dispatch.AudienceShowQR{RescueID: c.RescueID, MatchSlug: r.slug})
		return nil, nil
	case ShowChart:
		if _, err := r.rescues.Get(c.RescueID); err != nil {
			return nil, err
		}
		r.publish(dispatch.AudienceShowChart{RescueID: c.RescueID})
		return nil, nil
	case HideAudience:
		r.publish(dispatch.AudienceHide{})
		return nil, nil
	case WinGold:
		return r.winGold(c.ContestantID)
	case MarkEliminated:
		return r.markEliminated(c.IDs)
	case Awards:
		return r.awards(c.Awards)
	case ListResults:
		s, err := r.states.Get(r.matchID)
		if err != nil {
			return nil, err
		}
		ev := dispatch.ListResult{MatchID: r.matchID, Results: roster.Results(s)}
		r.publish(ev)
		return ev.Results, nil
	}
	return nil, matcherr.Validation("unsupported command %s", cmd.Name())
}

func (r *Room) startMatch() (any, error) {
	s, err := r.states.Get(r.matchID)
	if err != nil {
		return nil, err
	}
	if s.Status == engine.MatchFinished {
		return nil, matcherr.InvalidTransition("match %q is finished", r.matchID)
	}

	order := 0
	if s.TotalQuestions > 0 {
		order = 1
	}
	seconds := s.DefaultTimeFor(order)
	status := engine.MatchOngoing
	next, _, err := r.states.Mutate(r.matchID, engine.Mutation{
		Status:               &status,
		CurrentQuestionOrder: &order,
		RemainingTimeSeconds: &seconds,
	})
	if err != nil {
		return nil, err
	}
	if err := r.timer.Reset(seconds); err != nil {
		return nil, err
	}

	ev := dispatch.MatchStarted{
		MatchID:         r.matchID,
		CurrentQuestion: next.CurrentQuestionOrder,
		TimeRemaining:   next.RemainingTimeSeconds,
		Status:          next.Status,
		DefaultTime:     seconds,
	}
	r.publish(ev)
	r.logger.Info("match started", zap.Int("questions", next.TotalQuestions))
	return ev, nil
}

func (r *Room) showQuestion(order int) (any, error) {
	s, err := r.states.Get(r.matchID)
	if err != nil {
		return nil, err
	}
	q, ok := s.QuestionByOrder(order)
	if !ok {
		return nil, matcherr.NotFound("question %d in match %q", order, r.matchID)
	}

	seconds := q.DefaultTimeSeconds
	screen := engine.ScreenControl{ControlKey: engine.ControlQuestion}
	next, delta, err := r.states.Mutate(r.matchID, engine.Mutation{
		CurrentQuestionOrder: &order,
		RemainingTimeSeconds: &seconds,
		ScreenControl:        &screen,
	})
	if err != nil {
		return nil, err
	}
	if err := r.timer.Reset(seconds); err != nil {
		return nil, err
	}

	ev := dispatch.QuestionShown{CurrentQuestion: q, MatchID: r.matchID, TotalQuestions: next.TotalQuestions}
	r.publish(ev)
	if delta.ScreenControl != nil {
		r.publish(screenUpdate(r.matchID, next.ScreenControl))
	}
	r.publish(dispatch.TimerUpdate{TimeRemaining: seconds})
	return ev, nil
}

func (r *Room) resetTimer(seconds *int) (any, error) {
	s, err := r.states.Get(r.matchID)
	if err != nil {
		return nil, err
	}
	secs := s.DefaultTimeFor(s.CurrentQuestionOrder)
	if seconds != nil {
		secs = *seconds
	}
	if err := r.timer.Reset(secs); err != nil {
		return nil, err
	}
	if _, _, err := r.states.Mutate(r.matchID, engine.Mutation{RemainingTimeSeconds: &secs}); err != nil {
		return nil, err
	}
	r.publish(dispatch.TimerUpdate{TimeRemaining: secs})
	return r.timerView(), nil
}

func (r *Room) updateScreen(sc engine.ScreenControl) (any, error) {
	next, delta, err := r.states.Mutate(r.matchID, engine.Mutation{ScreenControl: &sc})
	if err != nil {
		return nil, err
	}
	if delta.ScreenControl != nil {
		r.publish(screenUpdate(r.matchID, next.ScreenControl))
	}
	return ScreenChange{ScreenControl: next.ScreenControl, Changed: delta.ScreenControl != nil}, nil
}

func (r *Room) updateStatuses(ids []string, status engine.ContestantStatus) (any, error) {
	res, next, changed, err := r.applyBatch(ids, status)
	if err != nil {
		return nil, err
	}
	if changed {
		r.publish(dispatch.ContestantStatusUpdate{ListContestant: roster.List(next)})
	}
	return res, nil
}

func (r *Room) applyBatch(ids []string, status engine.ContestantStatus) (roster.Result, engine.MatchState, bool, error) {
	s, err := r.states.Get(r.matchID)
	if err != nil {
		return roster.Result{}, engine.MatchState{}, false, err
	}
	m, res, err := roster.ApplyBatch(s, ids, status)
	if err != nil {
		return roster.Result{}, engine.MatchState{}, false, err
	}
	next, delta, err := r.states.Mutate(r.matchID, m)
	if err != nil {
		return roster.Result{}, engine.MatchState{}, false, err
	}
	return res, next, !delta.IsEmpty(), nil
}

func (r *Room) activateRescue(rescueID string, votingSeconds int) (any, error) {
	if votingSeconds < 0 {
		return nil, matcherr.Validation("votingSeconds must be >= 0, got %d", votingSeconds)
	}
	v, err := r.rescues.Activate(rescueID)
	if err != nil {
		return nil, err
	}
	r.publish(rescueStatus(v))
	r.publish(dispatch.ShowQrRescue{MatchSlug: r.slug, RescueID: v.RescueID, QuestionOrder: v.QuestionOrder})
	if votingSeconds > 0 {
		r.armWindow(rescueID, votingSeconds)
		r.publish(dispatch.RescueTimerStart{RescueID: rescueID, Seconds: votingSeconds})
	}
	return v, nil
}

func (r *Room) closeRescue(rescueID string) (any, error) {
	v, err := r.rescues.Close(rescueID)
	if err != nil {
		return nil, err
	}
	if r.stopWindow(rescueID) {
		r.publish(dispatch.RescueTimerEnd{RescueID: rescueID})
	}
	r.publish(rescueStatus(v))
	r.publish(dispatch.ShowQrChart{RescueID: rescueID, Tally: v.Tally})
	r.publish(dispatch.AudienceRefreshChart{RescueID: rescueID, Tally: v.Tally})
	return v, nil
}

func (r *Room) winGold(contestantID string) (any, error) {
	s, err := r.states.Get(r.matchID)
	if err != nil {
		return nil, err
	}
	for _, e := range roster.List(s) {
		if e.ID == contestantID {
			r.publish(dispatch.WinGold{MatchID: r.matchID, Contestant: e})
			return e, nil
		}
	}
	return nil, matcherr.NotFound("contestant %q in match %q", contestantID, r.matchID)
}

func (r *Room) markEliminated(ids []string) (any, error) {
	res, next, changed, err := r.applyBatch(ids, engine.StatusEliminated)
	if err != nil {
		return nil, err
	}
	list := roster.List(next)
	r.publish(dispatch.Eliminated{MatchID: r.matchID, ListContestant: roster.Filter(list, engine.StatusEliminated)})
	if changed {
		r.publish(dispatch.ContestantStatusUpdate{ListContestant: list})
	}
	return res, nil
}

func (r *Room) awards(awards []types.Award) (any, error) {
	if len(awards) == 0 {
		return nil, matcherr.Validation("awards must not be empty")
	}
	s, err := r.states.Get(r.matchID)
	if err != nil {
		return nil, err
	}
	for _, a := range awards {
		if !s.HasContestant(a.ContestantID) {
			return nil, matcherr.NotFound("contestant %q in match %q", a.ContestantID, r.matchID)
		}
	}
	ev := dispatch.AwardUpdate{MatchID: r.matchID, Awards: awards}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	r.publish(ev)
	return ev, nil
}

// saveStatistics snapshots the standings in the actor and writes them from a
// separate goroutine. The reply is sent when the write finishes.
func (r *Room) saveStatistics(reply chan<- Result) {
	if r.persist == nil {
		reply <- Result{Err: matcherr.Transport("no match data source configured")}
		return
	}
	s, err := r.states.Get(r.matchID)
	if err != nil {
		reply <- Result{Err: err}
		return
	}
	results := standings(s)

	r.saves.Add(1)
	go func() {
		defer r.saves.Done()
		ctx, cancel := context.WithTimeout(r.ctx, persistTimeout)
		defer cancel()
		if err := r.persist.SaveResults(ctx, r.matchID, results); err != nil {
			r.logger.Warn("saving results failed", zap.Error(err))
			reply <- Result{Err: err}
			return
		}
		reply <- Result{Data: SaveReport{Saved: len(results)}}
	}()
}

func standings(s engine.MatchState) []matchdata.ContestantResult {
	entries := roster.Results(s)
	out := make([]matchdata.ContestantResult, 0, len(entries))
	for i, e := range entries {
		out = append(out, matchdata.ContestantResult{ContestantID: e.ID, Status: e.Status, Rank: i + 1})
	}
	return out
}

func screenUpdate(matchID string, sc engine.ScreenControl) dispatch.ScreenUpdate {
	return dispatch.ScreenUpdate{
		Match:        matchID,
		ControlKey:   sc.ControlKey,
		ControlValue: sc.ControlValue,
		Media:        sc.Media,
	}
}

func rescueStatus(v rescue.View) dispatch.RescueStatusUpdate {
	return dispatch.RescueStatusUpdate{RescueID: v.RescueID, Status: v.Status, QuestionOrder: v.QuestionOrder}
}

func ackOK(data any) types.Ack {
	return types.Ack{Success: true, Data: data}
}

func joinReply(r *Room, mem registry.Membership) types.JoinReply {
	return types.JoinReply{RoomName: r.Name(), MatchID: r.matchID, Role: string(mem.Connection.Role)}
}
