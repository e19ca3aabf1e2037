package domain

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a live session.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further lifecycle transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// User is the shape returned by the external user-lookup collaborator.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	IsAdmin        bool   `json:"isAdmin"`
}

// Participant is a non-admin user competing in a live session.
type Participant struct {
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profilePicture"`
	JoinedAt       time.Time `json:"joinedAt"`
	Score          int       `json:"score"`
}

// Answer records one submission. At most one exists per (user, question index).
type Answer struct {
	UserID        string          `json:"userId"`
	QuestionIndex int             `json:"questionIndex"`
	Value         json.RawMessage `json:"value,omitempty"`
	SubmittedAt   time.Time       `json:"submittedAt"`
	Points        int             `json:"points"`
	DontKnow      bool            `json:"dontKnow"`
}

// LiveSession is one live-quiz room: one admin host, up to a fixed number of
// participants, an ordered question list and the answers recorded so far.
// The room store owns all mutation; callers outside its Mutate callback only
// ever see clones.
type LiveSession struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Description       string       `json:"description"`
	CategoryID        string       `json:"categoryId"`
	AdminID           string       `json:"adminId"`
	Questions         []Question   `json:"questions"`
	Participants      []Participant `json:"participants"`
	Status            Status       `json:"status"`
	CreatedAt         time.Time    `json:"createdAt"`
	CurrentQuestion   int          `json:"currentQuestion"`
	QuestionStartedAt time.Time    `json:"questionStartedAt"`
	Answers           []Answer     `json:"answers"`
	CompletedAt       *time.Time   `json:"completedAt,omitempty"`
}

// Participant returns the participant with the given user id, if present.
func (s *LiveSession) Participant(userID string) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

// AnswerFor returns the recorded answer of a user for a question index.
func (s *LiveSession) AnswerFor(userID string, questionIndex int) (*Answer, bool) {
	for i := range s.Answers {
		if s.Answers[i].UserID == userID && s.Answers[i].QuestionIndex == questionIndex {
			return &s.Answers[i], true
		}
	}
	return nil, false
}

// AnswerCount counts answers recorded for a question index.
func (s *LiveSession) AnswerCount(questionIndex int) int {
	n := 0
	for i := range s.Answers {
		if s.Answers[i].QuestionIndex == questionIndex {
			n++
		}
	}
	return n
}

// CorrectAnswerCount counts correct, non-don't-know answers for a question
// index. Incorrect answers carry negative points, so non-negative points on a
// real attempt mean the answer was correct.
func (s *LiveSession) CorrectAnswerCount(questionIndex int) int {
	n := 0
	for i := range s.Answers {
		a := &s.Answers[i]
		if a.QuestionIndex == questionIndex && !a.DontKnow && a.Points >= 0 {
			n++
		}
	}
	return n
}

// RoomUserIDs returns the admin plus all current participant user ids.
func (s *LiveSession) RoomUserIDs() []string {
	ids := make([]string, 0, len(s.Participants)+1)
	ids = append(ids, s.AdminID)
	for i := range s.Participants {
		ids = append(ids, s.Participants[i].UserID)
	}
	return ids
}

// Clone returns a deep copy safe to hand out after the session lock is
// released.
func (s *LiveSession) Clone() *LiveSession {
	c := *s
	c.Questions = append([]Question(nil), s.Questions...)
	c.Participants = append([]Participant(nil), s.Participants...)
	c.Answers = append([]Answer(nil), s.Answers...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
