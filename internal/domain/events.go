package domain

import "time"

// Wire event types. Client-originated and server-originated types share one
// namespace; the socket handler matches inbound types case-insensitively.
const (
	// Client -> Server
	EventUserConnected = "USER_CONNECTED"
	EventUserJoined    = "USER_JOINED_QUIZ"
	EventUserLeft      = "USER_LEFT_QUIZ"

	// Both directions (client relays, server announces)
	EventLiveQuizCreated = "LIVE_QUIZ_CREATED"
	EventQuizCancelled   = "QUIZ_CANCELLED"

	// Server -> Client
	EventParticipantsUpdated = "PARTICIPANTS_UPDATED"
	EventNextQuestion        = "NEXT_QUESTION"
	EventQuizCompleted       = "QUIZ_COMPLETED"
	EventQuizStarted         = "QUIZ_STARTED"
	EventError               = "ERROR"
)

// Event is the JSON envelope used on the socket in both directions.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ParticipantsUpdatedPayload announces the current participant list of a room.
type ParticipantsUpdatedPayload struct {
	QuizID       string        `json:"quizId"`
	Participants []Participant `json:"participants"`
}

// CancelledPayload announces a cancelled session to every open connection.
type CancelledPayload struct {
	QuizID  string `json:"quizId"`
	Message string `json:"message"`
}

// GameState is the room view pushed with question transitions and served by
// the game-state endpoint. The current question is included verbatim,
// correct-answer fields and all, for admin and participants alike.
type GameState struct {
	QuizID            string        `json:"quizId"`
	Status            Status        `json:"status"`
	QuestionIndex     int           `json:"questionIndex"`
	TotalQuestions    int           `json:"totalQuestions"`
	Question          *Question     `json:"question,omitempty"`
	QuestionStartedAt time.Time     `json:"questionStartedAt"`
	Participants      []Participant `json:"participants"`
}

// GameStatePayload wraps a game state with its quiz id for the socket.
type GameStatePayload struct {
	QuizID    string    `json:"quizId"`
	GameState GameState `json:"gameState"`
}

// ErrorPayload carries a human-readable failure back to one connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
