package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) BroadcastAll(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) BroadcastUsers(_ []string, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) lastOfType(eventType string) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			return r.events[i], true
		}
	}
	return domain.Event{}, false
}

func newTestService() (*app.LiveService, *eventRecorder) {
	users := map[string]domain.User{
		"admin": {ID: "admin", Username: "Host", IsAdmin: true},
	}
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5"} {
		users[id] = domain.User{ID: id, Username: "Player " + id}
	}
	recorder := &eventRecorder{}
	service := app.NewLiveService(app.Config{
		Rooms:        memory.NewRoomStore(),
		Users:        memory.NewUserDirectory(memory.NewStaticUserLoader(users), time.Minute),
		Broadcast:    recorder,
		AdvanceDelay: 10 * time.Millisecond,
		CancelGrace:  20 * time.Millisecond,
	})
	return service, recorder
}

func trueFalseQuestions(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{Kind: domain.TrueFalse, Text: "Yes?", CorrectBool: true, TimeLimitSec: 10}
	}
	return questions
}

func createStarted(t *testing.T, service *app.LiveService, questions []domain.Question, players ...string) *domain.LiveSession {
	t.Helper()
	ctx := context.Background()

	session, err := service.CreateSession(ctx, app.CreateSessionRequest{
		Name: "Friday round", AdminID: "admin", Questions: questions,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, p := range players {
		if _, err := service.JoinSession(ctx, session.ID, p); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
	if _, err := service.StartSession(session.ID, "admin"); err != nil {
		t.Fatalf("start: %v", err)
	}
	return session
}

func waitForStatus(t *testing.T, service *app.LiveService, sessionID string, want domain.Status) *domain.LiveSession {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		session, err := service.Room(sessionID, "admin")
		if err == nil && session.Status == want {
			return session
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %s", sessionID, want)
	return nil
}

func waitForQuestion(t *testing.T, service *app.LiveService, sessionID string, want int) *domain.LiveSession {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		session, err := service.Room(sessionID, "admin")
		if err == nil && session.CurrentQuestion == want {
			return session
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached question %d", sessionID, want)
	return nil
}

func TestSpeedRankedScoringAndAutoAdvance(t *testing.T) {
	// Scenario A: two TrueFalse questions, both players answer correctly in
	// order; first gets 5, second gets 3, and the room advances on its own.
	service, _ := newTestService()
	defer service.Close()
	session := createStarted(t, service, trueFalseQuestions(2), "u1", "u2")

	a1, err := service.SubmitAnswer(session.ID, "u1", domain.Submission{Value: json.RawMessage(`true`)})
	if err != nil {
		t.Fatalf("u1 submit: %v", err)
	}
	a2, err := service.SubmitAnswer(session.ID, "u2", domain.Submission{Value: json.RawMessage(`true`)})
	if err != nil {
		t.Fatalf("u2 submit: %v", err)
	}
	if a1.Points != 5 || a2.Points != 3 {
		t.Fatalf("expected 5/3 points, got %d/%d", a1.Points, a2.Points)
	}

	advanced := waitForQuestion(t, service, session.ID, 1)
	if advanced.Status != domain.StatusInProgress {
		t.Fatalf("expected quiz still running, got %s", advanced.Status)
	}
}

func TestRoundTripCompletesWithoutManualAdvance(t *testing.T) {
	service, recorder := newTestService()
	defer service.Close()
	session := createStarted(t, service, trueFalseQuestions(1), "u1", "u2")

	for _, p := range []string{"u1", "u2"} {
		if _, err := service.SubmitAnswer(session.ID, p, domain.Submission{Value: json.RawMessage(`true`)}); err != nil {
			t.Fatalf("%s submit: %v", p, err)
		}
	}

	done := waitForStatus(t, service, session.ID, domain.StatusCompleted)
	if done.CompletedAt == nil {
		t.Fatalf("expected completed-at stamp")
	}
	if _, ok := recorder.lastOfType(domain.EventQuizCompleted); !ok {
		t.Fatalf("expected QUIZ_COMPLETED broadcast")
	}
}

func TestIncorrectAnswerPenalty(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	session := createStarted(t, service, trueFalseQuestions(2), "u1", "u2")

	wrong, err := service.SubmitAnswer(session.ID, "u1", domain.Submission{Value: json.RawMessage(`false`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if wrong.Points != -1 {
		t.Fatalf("expected -1 penalty, got %d", wrong.Points)
	}

	// The incorrect answer must not consume a speed-rank slot.
	right, err := service.SubmitAnswer(session.ID, "u2", domain.Submission{Value: json.RawMessage(`true`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if right.Points != 5 {
		t.Fatalf("expected first correct answer to score 5, got %d", right.Points)
	}
}

func TestDontKnowScoresZeroAndKeepsRankSlots(t *testing.T) {
	// Scenario D.
	service, _ := newTestService()
	defer service.Close()
	session := createStarted(t, service, trueFalseQuestions(2), "u1", "u2")

	dk, err := service.SubmitAnswer(session.ID, "u1", domain.Submission{DontKnow: true})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if dk.Points != 0 || !dk.DontKnow {
		t.Fatalf("expected recorded don't-know with 0 points, got %+v", dk)
	}

	right, err := service.SubmitAnswer(session.ID, "u2", domain.Submission{Value: json.RawMessage(`true`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if right.Points != 5 {
		t.Fatalf("don't-know consumed a rank slot: got %d points", right.Points)
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	session := createStarted(t, service, trueFalseQuestions(2), "u1", "u2")

	if _, err := service.SubmitAnswer(session.ID, "u1", domain.Submission{Value: json.RawMessage(`true`)}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := service.SubmitAnswer(session.ID, "u1", domain.Submission{Value: json.RawMessage(`true`)})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	room, _ := service.Room(session.ID, "admin")
	p, _ := room.Participant("u1")
	if p.Score != 5 {
		t.Fatalf("rejected duplicate changed the score: %d", p.Score)
	}
}

func TestJoinRejections(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	ctx := context.Background()

	session, err := service.CreateSession(ctx, app.CreateSessionRequest{
		Name: "room", AdminID: "admin", Questions: trueFalseQuestions(1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Scenario C: the host cannot join their own room.
	if _, err := service.JoinSession(ctx, session.ID, "admin"); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden for admin self-join, got %v", err)
	}

	if _, err := service.JoinSession(ctx, session.ID, "u1"); err != nil {
		t.Fatalf("join u1: %v", err)
	}
	if _, err := service.JoinSession(ctx, session.ID, "u1"); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict for duplicate join, got %v", err)
	}

	for _, p := range []string{"u2", "u3", "u4"} {
		if _, err := service.JoinSession(ctx, session.ID, p); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}

	// Scenario B: a fifth player bounces off the full room. Capacity is
	// checked before membership, so a repeat joiner sees the same error.
	if _, err := service.JoinSession(ctx, session.ID, "u5"); domain.KindOf(err) != domain.KindCapacity {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if _, err := service.JoinSession(ctx, session.ID, "u1"); domain.KindOf(err) != domain.KindCapacity {
		t.Fatalf("expected capacity error for duplicate join of a full room, got %v", err)
	}
	room, _ := service.Room(session.ID, "admin")
	if len(room.Participants) != 4 {
		t.Fatalf("full room changed on rejected join: %d participants", len(room.Participants))
	}
	if _, err := service.JoinSession(ctx, "missing", "u5"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.JoinSession(ctx, session.ID, "ghost"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestCancelOnlyByAdmin(t *testing.T) {
	// Scenario E.
	service, recorder := newTestService()
	defer service.Close()
	ctx := context.Background()

	session, err := service.CreateSession(ctx, app.CreateSessionRequest{
		Name: "room", AdminID: "admin", Questions: trueFalseQuestions(1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinSession(ctx, session.ID, "u1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := service.CancelSession(session.ID, "u1"); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	room, _ := service.Room(session.ID, "admin")
	if room.Status != domain.StatusWaiting {
		t.Fatalf("failed cancel changed status to %s", room.Status)
	}

	if err := service.CancelSession(session.ID, "admin"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := recorder.lastOfType(domain.EventQuizCancelled); !ok {
		t.Fatalf("expected QUIZ_CANCELLED broadcast")
	}

	// The room lingers for the grace period, then disappears.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := service.Room(session.ID, "admin"); domain.KindOf(err) == domain.KindNotFound {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cancelled session was never removed")
}

func TestConcurrentCreatesAdmitOneWaitingSession(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.CreateSession(ctx, app.CreateSessionRequest{
				Name: "race", AdminID: "admin", Questions: trueFalseQuestions(1),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if domain.KindOf(err) != domain.KindConflict {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
}

func TestStartAndAdvanceGuards(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	ctx := context.Background()

	session, err := service.CreateSession(ctx, app.CreateSessionRequest{
		Name: "room", AdminID: "admin", Questions: trueFalseQuestions(2),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinSession(ctx, session.ID, "u1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := service.StartSession(session.ID, "u1"); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden start, got %v", err)
	}
	if _, err := service.AdvanceQuestion(session.ID, "admin"); domain.KindOf(err) != domain.KindInvalidState {
		t.Fatalf("expected invalid state before start, got %v", err)
	}

	started, err := service.StartSession(session.ID, "admin")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.CurrentQuestion != 0 || len(started.Answers) != 0 {
		t.Fatalf("start did not reset question state: %+v", started)
	}
	if _, err := service.StartSession(session.ID, "admin"); domain.KindOf(err) != domain.KindInvalidState {
		t.Fatalf("expected invalid state on double start, got %v", err)
	}

	next, err := service.AdvanceQuestion(session.ID, "admin")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if next.CurrentQuestion != 1 {
		t.Fatalf("expected question 1, got %d", next.CurrentQuestion)
	}

	done, err := service.AdvanceQuestion(session.ID, "admin")
	if err != nil {
		t.Fatalf("advance past last: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed session, got %+v", done)
	}
}

func TestLeaveSession(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	ctx := context.Background()

	session, err := service.CreateSession(ctx, app.CreateSessionRequest{
		Name: "room", AdminID: "admin", Questions: trueFalseQuestions(1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinSession(ctx, session.ID, "u1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := service.LeaveSession(session.ID, "u2"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found for absent participant, got %v", err)
	}

	left, err := service.LeaveSession(session.ID, "u1")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if len(left.Participants) != 0 {
		t.Fatalf("expected empty roster, got %d", len(left.Participants))
	}

	// Roster locks once the quiz starts.
	if _, err := service.JoinSession(ctx, session.ID, "u1"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if _, err := service.StartSession(session.ID, "admin"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.LeaveSession(session.ID, "u1"); domain.KindOf(err) != domain.KindInvalidState {
		t.Fatalf("expected invalid state after start, got %v", err)
	}
}

func TestSubmitRejections(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	ctx := context.Background()

	session, err := service.CreateSession(ctx, app.CreateSessionRequest{
		Name: "room", AdminID: "admin", Questions: trueFalseQuestions(1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinSession(ctx, session.ID, "u1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := service.SubmitAnswer("missing", "u1", domain.Submission{DontKnow: true}); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.SubmitAnswer(session.ID, "u1", domain.Submission{DontKnow: true}); domain.KindOf(err) != domain.KindInvalidState {
		t.Fatalf("expected invalid state before start, got %v", err)
	}

	if _, err := service.StartSession(session.ID, "admin"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(session.ID, "u2", domain.Submission{DontKnow: true}); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden for non-participant, got %v", err)
	}
}

func TestGameStateAccess(t *testing.T) {
	service, _ := newTestService()
	defer service.Close()
	session := createStarted(t, service, trueFalseQuestions(1), "u1")

	state, err := service.GameState(session.ID, "u1")
	if err != nil {
		t.Fatalf("game state: %v", err)
	}
	if state.Question == nil || state.Question.Kind != domain.TrueFalse {
		t.Fatalf("expected current question in game state, got %+v", state.Question)
	}
	if state.QuestionIndex != 0 || state.TotalQuestions != 1 {
		t.Fatalf("unexpected state %+v", state)
	}

	if _, err := service.GameState(session.ID, "u5"); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden for outsider, got %v", err)
	}

	active, ok := service.ActiveSession()
	if !ok || active.ID != session.ID {
		t.Fatalf("expected active session %s, got %+v", session.ID, active)
	}
}
