// Package types holds the JSON shapes exchanged with socket clients.
package types

import "encoding/json"

// Client -> Server
//
//	{"event": "timer:play", "ack": "17", "data": {"match": "m1"}}
type ClientMessage struct {
	Event string          `json:"event"`
	Ack   string          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Server -> Client. Acknowledgements use Event "ack" and echo the client's
// ack id.
type ServerMessage struct {
	Event string `json:"event"`
	Ack   string `json:"ack,omitempty"`
	Data  any    `json:"data"`
}

const EventAck = "ack"

// Ack answers exactly one inbound command.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JoinRequest is the payload of match:join and joinMatchRoom.
type JoinRequest struct {
	MatchSlug string `json:"matchSlug,omitempty"`
	MatchID   string `json:"matchId,omitempty"`
	Role      string `json:"role,omitempty"`
	Token     string `json:"token,omitempty"`
}

// JoinReply is the data of a successful join ack.
type JoinReply struct {
	RoomName string `json:"roomName"`
	MatchID  string `json:"matchId"`
	Role     string `json:"role"`
}

type MatchRequest struct {
	Match   string `json:"match,omitempty"`
	MatchID string `json:"matchId,omitempty"`
}

type ShowQuestionRequest struct {
	Match         string `json:"match,omitempty"`
	QuestionOrder int    `json:"questionOrder"`
}

type TimerRequest struct {
	Match   string `json:"match,omitempty"`
	Seconds *int   `json:"seconds,omitempty"`
}

type ScreenUpdateRequest struct {
	Match        string `json:"match,omitempty"`
	ControlKey   string `json:"controlKey"`
	ControlValue string `json:"controlValue,omitempty"`
	Media        string `json:"media,omitempty"`
}

type StatusUpdateRequest struct {
	Match  string   `json:"match,omitempty"`
	Status string   `json:"status"`
	IDs    []string `json:"ids"`
}

type RescueSelectRequest struct {
	RescueID      string   `json:"rescueId"`
	QuestionOrder int      `json:"questionOrder"`
	CandidateIDs  []string `json:"candidateIds"`
}

type RescueActivateRequest struct {
	RescueID      string `json:"rescueId"`
	VotingSeconds int    `json:"votingSeconds,omitempty"`
}

type RescueRequest struct {
	RescueID string `json:"rescueId"`
}

type VoteRequest struct {
	RescueID string `json:"rescueId"`
	Option   string `json:"option"`
}

type WinGoldRequest struct {
	ContestantID string `json:"contestantId"`
}

type EliminatedRequest struct {
	IDs []string `json:"ids"`
}

type Award struct {
	ContestantID string `json:"contestantId"`
	Title        string `json:"award"`
}

type AwardRequest struct {
	Awards []Award `json:"awards"`
}
