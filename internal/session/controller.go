// Package session implements the client-side authentication session
// controller: the state machine driving upload -> question loop -> verdict.
// A Controller exclusively owns one model.Session; the presentation layer
// reads snapshots and issues commands, never touching state directly.
package session

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appi18n "github.com/pavelanni/verichat/internal/i18n"
	"github.com/pavelanni/verichat/internal/model"
	"github.com/pavelanni/verichat/internal/verify"
)

// placeholderID is the fixed ID of the transient "typing" message. At most
// one exists at a time and it is always the last transcript entry.
const placeholderID = "typing-indicator"

// Verifier is the transport client surface the controller drives.
type Verifier interface {
	UploadCSV(ctx context.Context, userID, filename string, csv []byte) (*verify.UploadResponse, error)
	StartAuth(ctx context.Context, dataID, userID string) (*verify.StartAuthResponse, error)
	NextQuestion(ctx context.Context, sessionID string) (*verify.QuestionsResponse, error)
	VerifyAnswer(ctx context.Context, questionID, sessionID, answer string) (*verify.VerifyAnswerResponse, error)
	SessionStatus(ctx context.Context, sessionID string) (*verify.SessionStatusResponse, error)
}

// Scheduler defers a continuation by a fixed delay. The production
// implementation wraps time.AfterFunc; tests fire continuations by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) { time.AfterFunc(d, fn) }

// NewTimerScheduler returns the real time.AfterFunc-backed scheduler.
func NewTimerScheduler() Scheduler { return timerScheduler{} }

// Delays holds the conversational pacing intervals. Without them the
// grading feedback and the next question would render in the same instant.
type Delays struct {
	NextQuestion time.Duration
	FinalSummary time.Duration
}

// DataSource is the input of the SubmitData command. File upload and the
// bundled sample data are alternate producers of the same value.
type DataSource struct {
	Filename string
	CSV      []byte
}

// Controller orchestrates one verification session against the remote
// service. All state mutation happens under mu; network calls run with the
// mutex released so snapshot reads stay responsive, and the IsLoading gate
// guarantees at most one user-initiated command is in flight.
type Controller struct {
	mu     sync.Mutex
	state  model.Session
	api    Verifier
	sched  Scheduler
	delays Delays

	// ctx carries the message-catalog localizer. Commands deliberately do
	// not use request contexts: once issued, a remote call runs to its own
	// deadline regardless of the triggering request's fate.
	ctx context.Context
}

// NewController creates a controller in the initial uploading state with a
// fresh user identity and the welcoming message.
func NewController(ctx context.Context, api Verifier, sched Scheduler, delays Delays) *Controller {
	c := &Controller{api: api, sched: sched, delays: delays, ctx: ctx}
	c.state = initialSession(ctx)
	return c
}

func initialSession(ctx context.Context) model.Session {
	return model.Session{
		Phase:  model.PhaseUploading,
		UserID: newUserID(),
		Messages: []model.Message{{
			ID:        newMessageID(),
			Speaker:   model.SpeakerBot,
			Text:      appi18n.T(ctx, "Welcome"),
			CreatedAt: time.Now(),
		}},
	}
}

func newUserID() string    { return "user_" + uuid.NewString() }
func newMessageID() string { return "msg_" + uuid.NewString() }

// Snapshot returns a deep copy of the session for rendering.
func (c *Controller) Snapshot() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.state
	snap.Messages = make([]model.Message, len(c.state.Messages))
	copy(snap.Messages, c.state.Messages)
	if c.state.Verdict != nil {
		v := *c.state.Verdict
		snap.Verdict = &v
	}
	return snap
}

// Reset discards the session and returns to the initial uploading state
// with a fresh user identity. Valid in any phase; no network call.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = initialSession(c.ctx)
}

// AddMessage appends an arbitrary message to the transcript. Escape hatch
// for auxiliary UI needs.
func (c *Controller) AddMessage(speaker model.Speaker, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(speaker, text, nil)
}

// SubmitData uploads transaction history and, on success, auto-chains into
// session start and the first question. Valid only while uploading; a
// failure anywhere in the chain leaves the phase at uploading for retry.
func (c *Controller) SubmitData(src DataSource) {
	c.mu.Lock()
	if c.state.Phase != model.PhaseUploading || c.state.IsLoading {
		c.mu.Unlock()
		return
	}
	c.state.IsLoading = true
	c.state.Error = ""
	c.appendPlaceholderLocked()
	userID := c.state.UserID
	c.mu.Unlock()

	resp, err := c.api.UploadCSV(c.ctx, userID, src.Filename, src.CSV)

	c.mu.Lock()
	if c.state.UserID != userID {
		// Session was reset while the call was outstanding; the result
		// belongs to a dead session.
		c.mu.Unlock()
		return
	}
	c.removePlaceholderLocked()
	if err != nil {
		c.failLocked(err, "UploadFailed")
		c.state.IsLoading = false
		c.mu.Unlock()
		return
	}
	c.state.DataID = resp.DataID
	c.state.TotalTransactions = resp.TotalTransactions
	c.appendLocked(model.SpeakerBot, uploadSummary(c.ctx, resp), nil)
	c.mu.Unlock()

	// The user never explicitly starts a session; upload success chains
	// straight into it.
	c.startAuth(userID, resp.DataID)
}

// startAuth begins the question session. On failure the phase stays at
// uploading: authentication never started, and the attempt is not retried
// automatically.
func (c *Controller) startAuth(userID, dataID string) {
	c.mu.Lock()
	c.appendPlaceholderLocked()
	c.mu.Unlock()

	resp, err := c.api.StartAuth(c.ctx, dataID, userID)

	c.mu.Lock()
	if c.state.UserID != userID {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.removePlaceholderLocked()
		c.failLocked(err, "StartFailed")
		c.state.IsLoading = false
		c.mu.Unlock()
		return
	}
	c.state.SessionID = resp.SessionID
	c.state.Phase = model.PhaseAuthenticating
	c.mu.Unlock()

	c.fetchQuestion(resp.SessionID, true)
}

// fetchQuestion pulls the next question and appends it with its ordinal
// annotation. clearLoading is set when the fetch ends a user-initiated
// command chain; the deferred re-fetch after an answer runs outside any
// loading window.
func (c *Controller) fetchQuestion(sessionID string, clearLoading bool) {
	c.mu.Lock()
	if c.state.SessionID != sessionID || c.state.Phase != model.PhaseAuthenticating {
		// Stale continuation after a reset.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	resp, err := c.api.NextQuestion(c.ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.SessionID != sessionID || c.state.Phase != model.PhaseAuthenticating {
		return
	}
	c.removePlaceholderLocked()
	if clearLoading {
		defer func() { c.state.IsLoading = false }()
	}
	if err != nil {
		c.failLocked(err, "QuestionFailed")
		return
	}
	if resp.Question == nil {
		c.state.Error = appi18n.T(c.ctx, "NoMoreQuestions")
		c.appendLocked(model.SpeakerBot,
			appi18n.Td(c.ctx, "QuestionFailed", map[string]any{"Error": c.state.Error}), nil)
		return
	}
	q := resp.Question
	c.state.CurrentQuestionID = fmt.Sprintf("q_%d", q.QuestionNumber)
	c.appendLocked(model.SpeakerBot, q.QuestionText, &model.Annotations{
		QuestionNumber: q.QuestionNumber,
		TotalQuestions: q.TotalQuestions,
	})
}

// SubmitAnswer grades one answer. A call without an active question, or
// while another submission is in flight, is a silent no-op: that is a UI
// race, not a user-facing condition.
func (c *Controller) SubmitAnswer(text string) {
	c.mu.Lock()
	if c.state.Phase != model.PhaseAuthenticating ||
		c.state.SessionID == "" || c.state.CurrentQuestionID == "" ||
		c.state.IsLoading {
		c.mu.Unlock()
		return
	}
	c.state.IsLoading = true
	c.state.Error = ""
	// Displayed as typed; trimmed only for transport.
	c.appendLocked(model.SpeakerUser, text, nil)
	c.appendPlaceholderLocked()
	sessionID := c.state.SessionID
	questionID := c.state.CurrentQuestionID
	c.mu.Unlock()

	resp, err := c.api.VerifyAnswer(c.ctx, questionID, sessionID, strings.TrimSpace(text))

	c.mu.Lock()
	if c.state.SessionID != sessionID {
		c.mu.Unlock()
		return
	}
	c.removePlaceholderLocked()
	if err != nil {
		c.failLocked(err, "AnswerFailed")
		c.state.IsLoading = false
		c.mu.Unlock()
		return
	}

	v := resp.Validation
	conf := v.Confidence
	correct := v.IsCorrect
	c.appendLocked(model.SpeakerBot, feedbackText(c.ctx, v), &model.Annotations{
		Confidence: &conf,
		WasCorrect: &correct,
	})

	// The answered question is consumed either way; an empty
	// CurrentQuestionID rejects answers racing the deferred fetch.
	c.state.CurrentQuestionID = ""

	st := resp.AuthenticationStatus
	if st.Status == model.AuthInProgress {
		c.state.IsLoading = false
		c.mu.Unlock()
		c.sched.AfterFunc(c.delays.NextQuestion, func() {
			c.fetchQuestion(sessionID, false)
		})
		return
	}

	c.state.Phase = model.PhaseResult
	c.state.Verdict = &model.Verdict{FinalScore: st.Score, Status: st.Status}
	c.state.IsLoading = false
	c.mu.Unlock()

	summary := finalSummary(c.ctx, st)
	c.sched.AfterFunc(c.delays.FinalSummary, func() {
		c.deliverFinalSummary(sessionID, summary)
	})
}

// deliverFinalSummary appends the verdict narration unless the session was
// reset while the pacing delay was pending.
func (c *Controller) deliverFinalSummary(sessionID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.SessionID != sessionID || c.state.Phase != model.PhaseResult {
		return
	}
	c.appendLocked(model.SpeakerBot, text, nil)
}

// failLocked records the failure and narrates it into the transcript so it
// is visible in the conversation itself, not only a side banner.
func (c *Controller) failLocked(err error, msgID string) {
	c.state.Error = failureText(c.ctx, err)
	c.appendLocked(model.SpeakerBot,
		appi18n.Td(c.ctx, msgID, map[string]any{"Error": c.state.Error}), nil)
}

func (c *Controller) appendLocked(speaker model.Speaker, text string, ann *model.Annotations) {
	c.state.Messages = append(c.state.Messages, model.Message{
		ID:          newMessageID(),
		Speaker:     speaker,
		Text:        text,
		CreatedAt:   time.Now(),
		Annotations: ann,
	})
}

// appendPlaceholderLocked ensures exactly one placeholder exists and that
// it sits at the transcript tail.
func (c *Controller) appendPlaceholderLocked() {
	c.removePlaceholderLocked()
	c.state.Messages = append(c.state.Messages, model.Message{
		ID:            placeholderID,
		Speaker:       model.SpeakerBot,
		CreatedAt:     time.Now(),
		IsPlaceholder: true,
	})
}

func (c *Controller) removePlaceholderLocked() {
	msgs := c.state.Messages[:0]
	for _, m := range c.state.Messages {
		if m.ID != placeholderID {
			msgs = append(msgs, m)
		}
	}
	c.state.Messages = msgs
}

func uploadSummary(ctx context.Context, resp *verify.UploadResponse) string {
	text := appi18n.Tp(ctx, "TransactionsFound", resp.TotalTransactions)
	if resp.Summary != "" {
		text += " " + resp.Summary
	}
	return text + " " + appi18n.T(ctx, "StartingVerification")
}

func feedbackText(ctx context.Context, v verify.ValidationResult) string {
	if v.IsCorrect {
		return appi18n.Td(ctx, "AnswerCorrect", map[string]any{
			"Confidence":  int(math.Round(v.Confidence)),
			"Explanation": v.Explanation,
		})
	}
	return appi18n.Td(ctx, "AnswerIncorrect", map[string]any{"Explanation": v.Explanation})
}

func finalSummary(ctx context.Context, st verify.AuthenticationStatus) string {
	data := map[string]any{"Score": formatScore(st.Score)}
	if st.Status == model.AuthSuccess {
		return appi18n.Td(ctx, "FinalSuccess", data)
	}
	return appi18n.Td(ctx, "FinalFailed", data)
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
