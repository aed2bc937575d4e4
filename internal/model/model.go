package model

import "time"

// Phase is the session's coarse-grained stage. Commands are only valid in
// specific phases; the UI decides what to render from it.
type Phase string

const (
	PhaseUploading      Phase = "uploading"
	PhaseAuthenticating Phase = "authenticating"
	PhaseResult         Phase = "result"
)

// Speaker identifies who produced a transcript message.
type Speaker string

const (
	SpeakerBot  Speaker = "bot"
	SpeakerUser Speaker = "user"
)

// AuthStatus is the verification service's view of a session.
type AuthStatus string

const (
	AuthInProgress AuthStatus = "in_progress"
	AuthSuccess    AuthStatus = "success"
	AuthFailed     AuthStatus = "failed"
)

// Annotations carries question or grading metadata on bot messages.
// Question messages set the number fields; grading feedback sets
// Confidence and WasCorrect.
type Annotations struct {
	QuestionNumber int      `json:"question_number,omitempty"`
	TotalQuestions int      `json:"total_questions,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	WasCorrect     *bool    `json:"was_correct,omitempty"`
}

// Message is one entry in the conversation transcript. Messages are
// immutable once appended; insertion order is the visible conversation.
type Message struct {
	ID            string       `json:"id"`
	Speaker       Speaker      `json:"speaker"`
	Text          string       `json:"text"`
	CreatedAt     time.Time    `json:"created_at"`
	IsPlaceholder bool         `json:"is_placeholder,omitempty"`
	Annotations   *Annotations `json:"annotations,omitempty"`
}

// Verdict is the terminal outcome of a verification session.
type Verdict struct {
	FinalScore float64    `json:"final_score"`
	Status     AuthStatus `json:"status"`
}

// Session is the entire client-visible truth of one verification attempt.
// It is exclusively owned by the session controller; everything else reads
// snapshots.
//
// Invariants:
//   - at most one placeholder message exists, and it is always last;
//   - CurrentQuestionID is set iff a question was delivered and not answered;
//   - Verdict is set iff Phase is result;
//   - DataID is set before SessionID, SessionID before any question.
type Session struct {
	Phase             Phase     `json:"phase"`
	UserID            string    `json:"user_id"`
	DataID            string    `json:"data_id,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	CurrentQuestionID string    `json:"current_question_id,omitempty"`
	TotalTransactions int       `json:"total_transactions,omitempty"`
	Messages          []Message `json:"messages"`
	IsLoading         bool      `json:"is_loading"`
	Error             string    `json:"error,omitempty"`
	Verdict           *Verdict  `json:"verdict,omitempty"`
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	Addr           string
	APIBaseURL     string        // verification service base URL
	APITimeout     time.Duration // per-request deadline on the transport client
	QuestionDelay  time.Duration // pause before the next question appears
	ResultDelay    time.Duration // pause before the final summary appears
	SessionTTL     time.Duration // idle tab session eviction
	Lang           string
	AllowedOrigins []string
	SecureCookies  bool
}
