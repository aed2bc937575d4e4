package verify

import "github.com/pavelanni/verichat/internal/model"

// Wire types for the remote verification service. The contract is fixed and
// owned by the service; these mirror it field for field.

// UploadResponse is the payload of POST /upload-csv.
type UploadResponse struct {
	Success           bool   `json:"success"`
	DataID            string `json:"data_id"`
	TotalTransactions int    `json:"total_transactions"`
	Summary           string `json:"summary"`
}

// StartAuthResponse is the payload of POST /start-auth.
type StartAuthResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

// Question is one knowledge-based question about the uploaded transactions.
type Question struct {
	QuestionText   string `json:"question_text"`
	QuestionNumber int    `json:"question_number"`
	TotalQuestions int    `json:"total_questions"`
}

// QuestionsResponse is the payload of GET /questions. Question is nil when
// the service has no further questions for the session.
type QuestionsResponse struct {
	Success  bool      `json:"success"`
	Question *Question `json:"question"`
}

// ValidationResult is the grading of one submitted answer.
type ValidationResult struct {
	IsCorrect   bool    `json:"is_correct"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// AuthenticationStatus reports where the session stands after an answer.
type AuthenticationStatus struct {
	Status model.AuthStatus `json:"status"`
	Score  float64          `json:"score"`
}

// VerifyAnswerResponse is the payload of POST /questions/{id}/verify.
type VerifyAnswerResponse struct {
	Success              bool                 `json:"success"`
	Validation           ValidationResult     `json:"validation"`
	AuthenticationStatus AuthenticationStatus `json:"authentication_status"`
}

// SessionStatusResponse is the payload of GET /session-status/{id}.
type SessionStatusResponse struct {
	Success          bool             `json:"success"`
	QuestionsAsked   int              `json:"questions_asked"`
	QuestionsCorrect int              `json:"questions_correct"`
	Status           model.AuthStatus `json:"status"`
}

// errorEnvelope is the service's error body shape; either field may carry
// the message.
type errorEnvelope struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e errorEnvelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
