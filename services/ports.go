package services

import (
	"context"

	"gorm.io/gorm"
)

// Submission is one accepted verdict reported by the external judge.
type Submission struct {
	ID                  int64
	ContestID           int
	ProblemIndex        string
	CreationTimeSeconds int64
}

// SubmissionSource returns accepted submissions of a handle created at or after since.
// Errors are transient: callers retry on the next tick.
type SubmissionSource interface {
	FetchAcceptedSubmissions(ctx context.Context, handle string, since int64) ([]Submission, error)
}

// HandleStore maps users to judge handles and holds their practice rating.
// WithTx binds the store to an open transaction so rating writes commit with the
// challenge state that caused them.
type HandleStore interface {
	GetRating(ctx context.Context, scopeID, userID string) (int, error)
	UpdateRating(ctx context.Context, scopeID, userID string, rating int) error
	GetLinkedHandle(ctx context.Context, scopeID, userID string) (string, bool, error)
	WithTx(tx *gorm.DB) HandleStore
}

// SummaryRef points at the message that renders a challenge or tournament.
type SummaryRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

const (
	SummaryKindChallenge  = "challenge"
	SummaryKindTournament = "tournament"
)

// RenderedState is what the message sink shows for a SummaryRef.
type RenderedState struct {
	Title   string      `json:"title"`
	Status  string      `json:"status"`
	Final   bool        `json:"final"`
	Lines   []string    `json:"lines"`
	Payload interface{} `json:"payload,omitempty"`
}

// MessageSink posts or edits the summary message. Best effort: errors are only logged.
type MessageSink interface {
	PostOrUpdateSummary(ctx context.Context, ref SummaryRef, state RenderedState) error
}

// ProblemInfo is catalog metadata for one problem.
type ProblemInfo struct {
	ContestID int
	Index     string
	Name      string
	Rating    int
	Tags      []string
}

// ProblemCatalog resolves problem metadata. A nil result with nil error means unknown problem.
type ProblemCatalog interface {
	ResolveProblem(ctx context.Context, contestID int, index string) (*ProblemInfo, error)
}

// CompletionListener is notified after a challenge linked to a tournament match completes.
type CompletionListener interface {
	OnChallengeCompleted(ctx context.Context, challengeID string) error
}

// RecapArchive stores rendered tournament recaps.
type RecapArchive interface {
	PutRecap(ctx context.Context, key string, body []byte) error
}
