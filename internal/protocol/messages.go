// Package protocol is the wire catalog: JSON messages exchanged over the room
// transport, plus the redacted state views served on snapshots.
package protocol

import "time"

// Client -> server message types.
const (
	MsgJoinRoom     = "join_room"
	MsgCardSelected = "card_selected"
	MsgSubmitAnswer = "submit_answer"
	MsgUsePowerUp   = "use_powerup"
	MsgAckResult    = "ack_result"
)

// Server -> client message types.
const (
	MsgPlayerJoined      = "player_joined"
	MsgQuestionChallenge = "question_challenge"
	MsgAnswerResolved    = "answer_resolved"
	MsgPowerUpAvailable  = "powerup_available"
	MsgPowerUpApplied    = "powerup_applied"
	MsgTaunt             = "taunt"
	MsgStateUpdate       = "state_update"
	MsgGameOver          = "game_over"
	MsgIllegalAction     = "illegal_action"
	MsgRoomTerminated    = "room_terminated"
)

// Reason codes carried by illegal_action.
const (
	ReasonWrongTurn          = "wrong_turn"
	ReasonWrongPhase         = "wrong_phase"
	ReasonUnknownPlayer      = "unknown_player"
	ReasonCardNotInHand      = "card_not_in_hand"
	ReasonBadTarget          = "bad_target"
	ReasonOwnQuestion        = "own_question"
	ReasonChallengeMismatch  = "challenge_mismatch"
	ReasonAlreadyAnswered    = "already_answered"
	ReasonPowerUpUnavailable = "powerup_unavailable"
	ReasonGameCompleted      = "game_completed"
	ReasonBadPayload         = "bad_payload"
)

type ClientMessage struct {
	Type     string `json:"type"`
	CardID   string `json:"card_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Choice   int    `json:"selected_choice"`
	Kind     string `json:"kind,omitempty"`
	Emote    string `json:"emote,omitempty"`
}

// QuestionPayload never carries the correct answer.
type QuestionPayload struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
	Level   string   `json:"level"`
}

// ServerMessage is the single envelope for every server -> client event. Seq
// is the room's monotonic sequence number; a client that reconnects presents
// the last seq it saw and the room replays anything newer addressed to it.
type ServerMessage struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`

	PlayerID     string           `json:"player_id,omitempty"`
	ChallengerID string           `json:"challenger_id,omitempty"`
	TargetID     string           `json:"target_id,omitempty"`
	CardID       string           `json:"card_id,omitempty"`
	Question     *QuestionPayload `json:"question,omitempty"`
	Damage       int              `json:"damage,omitempty"`
	DeadlineAt   *time.Time       `json:"deadline_at,omitempty"`
	IsCorrect    *bool            `json:"is_correct,omitempty"`
	Forced       bool             `json:"forced,omitempty"`
	UpdatedHP    map[string]int   `json:"updated_hp,omitempty"`
	Kind         string           `json:"kind,omitempty"`
	Effect       string           `json:"effect_summary,omitempty"`
	Emote        string           `json:"emote,omitempty"`
	State        *RoomView        `json:"state,omitempty"`
	WinnerID     string           `json:"winner_id,omitempty"`
	Reason       string           `json:"reason_code,omitempty"`
	Error        string           `json:"error,omitempty"`
}
