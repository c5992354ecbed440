package ws

import (
	"encoding/json"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/room"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

const (
	EventJoin      = "match:join"
	EventJoinAlias = "joinMatchRoom"
)

// toRoomCommand decodes an inbound event into the room command it maps to.
func toRoomCommand(event string, data json.RawMessage) (room.Command, error) {
	switch event {
	case "match:start":
		return room.StartMatch{}, nil
	case "match:showQuestion":
		var req types.ShowQuestionRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.ShowQuestion{Order: req.QuestionOrder}, nil
	case "timer:play":
		return room.TimerPlay{}, nil
	case "timer:pause":
		return room.TimerPause{}, nil
	case "timer:reset":
		var req types.TimerRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.TimerReset{Seconds: req.Seconds}, nil
	case "screen:update":
		var req types.ScreenUpdateRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.UpdateScreen{Control: engine.ScreenControl{
			ControlKey:   engine.ControlKey(req.ControlKey),
			ControlValue: engine.ControlValue(req.ControlValue),
			Media:        req.Media,
		}}, nil
	case "contestant:status-update-admin":
		var req types.StatusUpdateRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.UpdateStatuses{IDs: req.IDs, Status: engine.ContestantStatus(req.Status)}, nil
	case "statistics:update":
		return room.SaveStatistics{}, nil
	case "rescue:select":
		var req types.RescueSelectRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.SelectRescue{RescueID: req.RescueID, QuestionOrder: req.QuestionOrder, Candidates: req.CandidateIDs}, nil
	case "rescue:activate":
		var req types.RescueActivateRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.ActivateRescue{RescueID: req.RescueID, VotingSeconds: req.VotingSeconds}, nil
	case "rescue:close":
		var req types.RescueRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.CloseRescue{RescueID: req.RescueID}, nil
	case "rescue:vote":
		var req types.VoteRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.Vote{RescueID: req.RescueID, Option: req.Option}, nil
	case "rescue:tally":
		var req types.RescueRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.TallyRescue{RescueID: req.RescueID}, nil
	case "audience:showQR":
		var req types.RescueRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.ShowQR{RescueID: req.RescueID}, nil
	case "audience:showChart":
		var req types.RescueRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.ShowChart{RescueID: req.RescueID}, nil
	case "audience:hide":
		return room.HideAudience{}, nil
	case "update:winGold":
		var req types.WinGoldRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.WinGold{ContestantID: req.ContestantID}, nil
	case "update:Eliminated":
		var req types.EliminatedRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.MarkEliminated{IDs: req.IDs}, nil
	case "update:award":
		var req types.AwardRequest
		if err := decode(event, data, &req); err != nil {
			return nil, err
		}
		return room.Awards{Awards: req.Awards}, nil
	case "listResult":
		return room.ListResults{}, nil
	}
	return nil, matcherr.Validation("unknown event %q", event)
}

func decode(event string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return matcherr.Validation("%s: data is required", event)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return matcherr.Validation("%s: malformed data: %v", event, err)
	}
	return nil
}
