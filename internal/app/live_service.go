package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// RoomStore abstracts how live sessions are stored (in-memory, Redis-marked).
// Mutate is the only mutation primitive: it runs its callback under the
// session's lock so compound invariant checks never race.
type RoomStore interface {
	Create(session *domain.LiveSession) error
	Get(sessionID string) (*domain.LiveSession, error)
	Mutate(sessionID string, fn func(*domain.LiveSession) error) error
	Remove(sessionID string)
	ListActive() []*domain.LiveSession
}

// UserDirectory resolves user ids into display data (the external user-lookup
// collaborator).
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// Broadcaster fans a typed event out to connections. Delivery is
// fire-and-forget; callers never block on it.
type Broadcaster interface {
	BroadcastAll(event domain.Event)
	BroadcastUsers(userIDs []string, event domain.Event)
}

const (
	defaultMaxParticipants = 4
	defaultAdvanceDelay    = time.Second
	defaultCancelGrace     = 5 * time.Second
	defaultQuestionSec     = 30
)

// Config wires the live service's collaborators and tunables. Zero tunables
// fall back to the production defaults.
type Config struct {
	Rooms     RoomStore
	Users     UserDirectory
	Broadcast Broadcaster

	MaxParticipants    int
	AdvanceDelay       time.Duration
	CancelGrace        time.Duration
	DefaultQuestionSec int

	// Now is test-only for deterministic timestamps.
	Now func() time.Time
}

// LiveService is the session lifecycle manager and answer processor. All
// session mutation happens inside RoomStore.Mutate callbacks; broadcasts go
// out after the session lock is released, from a snapshot taken under it.
type LiveService struct {
	rooms     RoomStore
	users     UserDirectory
	broadcast Broadcaster
	timers    *Scheduler

	maxParticipants int
	advanceDelay    time.Duration
	cancelGrace     time.Duration
	questionSec     int
	now             func() time.Time
}

func NewLiveService(c Config) *LiveService {
	s := &LiveService{
		rooms:           c.Rooms,
		users:           c.Users,
		broadcast:       c.Broadcast,
		timers:          NewScheduler(),
		maxParticipants: c.MaxParticipants,
		advanceDelay:    c.AdvanceDelay,
		cancelGrace:     c.CancelGrace,
		questionSec:     c.DefaultQuestionSec,
		now:             c.Now,
	}
	if s.maxParticipants <= 0 {
		s.maxParticipants = defaultMaxParticipants
	}
	if s.advanceDelay <= 0 {
		s.advanceDelay = defaultAdvanceDelay
	}
	if s.cancelGrace <= 0 {
		s.cancelGrace = defaultCancelGrace
	}
	if s.questionSec <= 0 {
		s.questionSec = defaultQuestionSec
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Close cancels outstanding delayed tasks.
func (s *LiveService) Close() {
	s.timers.Stop()
}

// CreateSessionRequest carries everything needed to open a new room.
type CreateSessionRequest struct {
	Name        string
	Description string
	CategoryID  string
	AdminID     string
	Questions   []domain.Question
}

// CreateSession opens a new Waiting room hosted by the given admin. Only one
// room may be Waiting at a time.
func (s *LiveService) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.LiveSession, error) {
	if _, err := s.users.GetUser(ctx, req.AdminID); err != nil {
		return nil, err
	}
	if len(req.Questions) == 0 {
		return nil, domain.InvalidStatef("a live quiz needs at least one question")
	}

	questions := append([]domain.Question(nil), req.Questions...)
	for i := range questions {
		if questions[i].TimeLimitSec <= 0 {
			questions[i].TimeLimitSec = s.questionSec
		}
	}

	session := &domain.LiveSession{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		AdminID:         req.AdminID,
		Questions:       questions,
		Status:          domain.StatusWaiting,
		CreatedAt:       s.now(),
		CurrentQuestion: -1,
	}
	if err := s.rooms.Create(session); err != nil {
		return nil, err
	}

	snap := session.Clone()
	s.broadcast.BroadcastAll(domain.Event{Type: domain.EventLiveQuizCreated, Payload: snap})
	return snap, nil
}

// JoinSession adds a user to a Waiting room.
func (s *LiveService) JoinSession(ctx context.Context, sessionID, userID string) (*domain.LiveSession, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var snap *domain.LiveSession
	err = s.rooms.Mutate(sessionID, func(session *domain.LiveSession) error {
		if userID == session.AdminID {
			return domain.Forbiddenf("the quiz host cannot join as a participant")
		}
		if session.Status != domain.StatusWaiting {
			return domain.InvalidStatef("live quiz %s is not open for joining", sessionID)
		}
		if len(session.Participants) >= s.maxParticipants {
			return domain.Capacityf("live quiz %s is full (%d players)", sessionID, s.maxParticipants)
		}
		if _, ok := session.Participant(userID); ok {
			return domain.Conflictf("user %s already joined live quiz %s", userID, sessionID)
		}

		session.Participants = append(session.Participants, domain.Participant{
			UserID:         user.ID,
			Username:       user.Username,
			ProfilePicture: user.ProfilePicture,
			JoinedAt:       s.now(),
		})
		snap = session.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastParticipants(snap)
	return snap, nil
}

// LeaveSession removes a participant from a Waiting room. Once the quiz is
// running the roster is locked.
func (s *LiveService) LeaveSession(sessionID, userID string) (*domain.LiveSession, error) {
	var snap *domain.LiveSession
	err := s.rooms.Mutate(sessionID, func(session *domain.LiveSession) error {
		if session.Status != domain.StatusWaiting {
			return domain.InvalidStatef("cannot leave live quiz %s after it started", sessionID)
		}
		for i := range session.Participants {
			if session.Participants[i].UserID == userID {
				session.Participants = append(session.Participants[:i], session.Participants[i+1:]...)
				snap = session.Clone()
				return nil
			}
		}
		return domain.NotFoundf("user %s is not in live quiz %s", userID, sessionID)
	})
	if err != nil {
		return nil, err
	}

	s.broadcastParticipants(snap)
	return snap, nil
}

// CancelSession cancels a non-terminal room. The room stays in the store for
// a grace period so in-flight broadcasts can still resolve it, then is
// removed by a delayed task that re-checks its state.
func (s *LiveService) CancelSession(sessionID, requesterID string) error {
	err := s.rooms.Mutate(sessionID, func(session *domain.LiveSession) error {
		if requesterID != session.AdminID {
			return domain.Forbiddenf("only the quiz host may cancel live quiz %s", sessionID)
		}
		if session.Status.Terminal() {
			return domain.InvalidStatef("live quiz %s already ended", sessionID)
		}
		session.Status = domain.StatusCancelled
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcast.BroadcastAll(domain.Event{
		Type:    domain.EventQuizCancelled,
		Payload: domain.CancelledPayload{QuizID: sessionID, Message: "The live quiz was cancelled by the host."},
	})

	s.timers.After("cleanup:"+sessionID, s.cancelGrace, func() {
		session, err := s.rooms.Get(sessionID)
		if err != nil || session.Status != domain.StatusCancelled {
			return
		}
		s.rooms.Remove(sessionID)
	})
	return nil
}

// StartSession moves a Waiting room to InProgress on question 0, resetting
// scores and clearing any stale answers.
func (s *LiveService) StartSession(sessionID, requesterID string) (*domain.LiveSession, error) {
	var snap *domain.LiveSession
	err := s.rooms.Mutate(sessionID, func(session *domain.LiveSession) error {
		if requesterID != session.AdminID {
			return domain.Forbiddenf("only the quiz host may start live quiz %s", sessionID)
		}
		if session.Status != domain.StatusWaiting {
			return domain.InvalidStatef("live quiz %s cannot start from status %s", sessionID, session.Status)
		}

		session.Status = domain.StatusInProgress
		for i := range session.Participants {
			session.Participants[i].Score = 0
		}
		session.CurrentQuestion = 0
		session.QuestionStartedAt = s.now()
		session.Answers = nil
		snap = session.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast.BroadcastUsers(snap.RoomUserIDs(), domain.Event{
		Type:    domain.EventQuizStarted,
		Payload: domain.GameStatePayload{QuizID: snap.ID, GameState: s.gameState(snap)},
	})
	return snap, nil
}

// AdvanceQuestion is the admin's manual fallback to the automatic advance.
func (s *LiveService) AdvanceQuestion(sessionID, requesterID string) (*domain.LiveSession, error) {
	var snap *domain.LiveSession
	err := s.rooms.Mutate(sessionID, func(session *domain.LiveSession) error {
		if requesterID != session.AdminID {
			return domain.Forbiddenf("only the quiz host may advance live quiz %s", sessionID)
		}
		if session.Status != domain.StatusInProgress {
			return domain.InvalidStatef("live quiz %s is not running", sessionID)
		}
		s.advanceLocked(session)
		snap = session.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A manual advance supersedes any pending automatic one.
	s.timers.Cancel("advance:" + sessionID)
	s.broadcastQuestionState(snap)
	return snap, nil
}

// SubmitAnswer validates, scores and records one answer, then auto-advances
// once every participant has answered the current question. Steps run as one
// atomic unit under the session lock; two simultaneous submissions can never
// observe the same speed rank.
func (s *LiveService) SubmitAnswer(sessionID, userID string, sub domain.Submission) (domain.Answer, error) {
	var (
		recorded    domain.Answer
		allAnswered bool
		fromIndex   int
	)
	err := s.rooms.Mutate(sessionID, func(session *domain.LiveSession) error {
		if session.Status != domain.StatusInProgress {
			return domain.InvalidStatef("live quiz %s is not accepting answers", sessionID)
		}
		idx := session.CurrentQuestion
		if _, ok := session.AnswerFor(userID, idx); ok {
			return domain.Conflictf("user %s already answered question %d", userID, idx)
		}
		participant, ok := session.Participant(userID)
		if !ok {
			return domain.Forbiddenf("user %s is not playing live quiz %s", userID, sessionID)
		}

		points := 0
		if !sub.DontKnow {
			if session.Questions[idx].Evaluate(sub) {
				points = domain.PointsForRank(session.CorrectAnswerCount(idx))
			} else {
				points = domain.IncorrectPenalty
			}
		}

		recorded = domain.Answer{
			UserID:        userID,
			QuestionIndex: idx,
			Value:         sub.Value,
			SubmittedAt:   s.now(),
			Points:        points,
			DontKnow:      sub.DontKnow,
		}
		session.Answers = append(session.Answers, recorded)
		participant.Score += points

		fromIndex = idx
		allAnswered = session.AnswerCount(idx) == len(session.Participants)
		return nil
	})
	if err != nil {
		return domain.Answer{}, err
	}

	if allAnswered {
		// Give the answering client's own UI a moment before the room moves on.
		s.timers.After("advance:"+sessionID, s.advanceDelay, func() {
			s.autoAdvance(sessionID, fromIndex)
		})
	}
	return recorded, nil
}

// autoAdvance performs the deferred transition after all participants
// answered. It re-fetches state and is a no-op if the session was removed,
// cancelled, or already advanced past fromIndex in the meantime.
func (s *LiveService) autoAdvance(sessionID string, fromIndex int) {
	var snap *domain.LiveSession
	err := s.rooms.Mutate(sessionID, func(session *domain.LiveSession) error {
		if session.Status != domain.StatusInProgress || session.CurrentQuestion != fromIndex {
			return domain.InvalidStatef("stale advance")
		}
		s.advanceLocked(session)
		snap = session.Clone()
		return nil
	})
	if err != nil {
		return
	}
	s.broadcastQuestionState(snap)
}

func (s *LiveService) advanceLocked(session *domain.LiveSession) {
	session.CurrentQuestion++
	if session.CurrentQuestion >= len(session.Questions) {
		session.Status = domain.StatusCompleted
		done := s.now()
		session.CompletedAt = &done
		return
	}
	session.QuestionStartedAt = s.now()
}

// Room returns a snapshot for the caller if they are the host, a
// participant, or the room is still open for joining.
func (s *LiveService) Room(sessionID, requesterID string) (*domain.LiveSession, error) {
	session, err := s.rooms.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if requesterID != session.AdminID && session.Status != domain.StatusWaiting {
		if _, ok := session.Participant(requesterID); !ok {
			return nil, domain.Forbiddenf("user %s may not view live quiz %s", requesterID, sessionID)
		}
	}
	return session, nil
}

// ActiveSession returns the most recently created Waiting or InProgress
// session, if any.
func (s *LiveService) ActiveSession() (*domain.LiveSession, bool) {
	var latest *domain.LiveSession
	for _, session := range s.rooms.ListActive() {
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	return latest, latest != nil
}

// GameState returns the current room view for the host or a participant.
func (s *LiveService) GameState(sessionID, requesterID string) (domain.GameState, error) {
	session, err := s.rooms.Get(sessionID)
	if err != nil {
		return domain.GameState{}, err
	}
	if requesterID != session.AdminID {
		if _, ok := session.Participant(requesterID); !ok {
			return domain.GameState{}, domain.Forbiddenf("user %s is not in live quiz %s", requesterID, sessionID)
		}
	}
	return s.gameState(session), nil
}

func (s *LiveService) gameState(session *domain.LiveSession) domain.GameState {
	state := domain.GameState{
		QuizID:            session.ID,
		Status:            session.Status,
		QuestionIndex:     session.CurrentQuestion,
		TotalQuestions:    len(session.Questions),
		QuestionStartedAt: session.QuestionStartedAt,
		Participants:      append([]domain.Participant(nil), session.Participants...),
	}
	if session.Status == domain.StatusInProgress &&
		session.CurrentQuestion >= 0 && session.CurrentQuestion < len(session.Questions) {
		q := session.Questions[session.CurrentQuestion]
		state.Question = &q
	}
	return state
}

func (s *LiveService) broadcastParticipants(session *domain.LiveSession) {
	s.broadcast.BroadcastUsers(session.RoomUserIDs(), domain.Event{
		Type: domain.EventParticipantsUpdated,
		Payload: domain.ParticipantsUpdatedPayload{
			QuizID:       session.ID,
			Participants: session.Participants,
		},
	})
}

func (s *LiveService) broadcastQuestionState(session *domain.LiveSession) {
	eventType := domain.EventNextQuestion
	if session.Status == domain.StatusCompleted {
		eventType = domain.EventQuizCompleted
	}
	s.broadcast.BroadcastUsers(session.RoomUserIDs(), domain.Event{
		Type:    eventType,
		Payload: domain.GameStatePayload{QuizID: session.ID, GameState: s.gameState(session)},
	})
}
