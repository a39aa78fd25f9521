package workflow

import (
	"context"

	"github.com/mind-engage/peerinst/internal/selection"
)

// CompletedStage marks how far an in-progress attempt has advanced. The
// dispatcher derives the stage to run from this plus durable Answer existence.
type CompletedStage string

const (
	CompletedNone             CompletedStage = ""
	CompletedStart            CompletedStage = "start"
	CompletedSequentialReview CompletedStage = "sequential-review"
)

// Attribution is one fake username/country pair shown next to a rationale.
type Attribution struct {
	Username string `json:"username"`
	Country  string `json:"country"`
}

// SequenceItem is one entry of the sequential-review rationale sequence.
type SequenceItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// StageData is the transient state of one attempt at one question. It lives
// in a StageStore between requests and is cleared when the attempt commits
// or restarts. Each stage only populates the fields valid for it: Start
// writes the first choice and rationale, review adds the frozen sample and
// attributions, sequential review adds the vote cursor.
type StageData struct {
	FirstAnswerChoice int                          `json:"first_answer_choice"`
	Rationale         string                       `json:"rationale"`
	Completed         CompletedStage               `json:"completed_stage"`
	RationaleChoices  []selection.ChoiceRationales `json:"rationale_choices,omitempty"`
	FakeAttributions  map[string]Attribution       `json:"fake_attributions,omitempty"`
	RationaleSequence []SequenceItem               `json:"rationale_sequence,omitempty"`
	RationaleIndex    int                          `json:"rationale_index"`
	// No omitempty: the empty map marks a frozen sequence awaiting its
	// first vote and must survive the store round-trip.
	RationaleVotes map[string]string `json:"rationale_votes"` // id -> up|down
}

// StageKey identifies one attempt: the user plus the assignment:question pair.
func StageKey(userToken, assignmentID, questionID string) string {
	return userToken + "|" + CustomKey(assignmentID, questionID)
}

// CustomKey is the assignment:question identifier shared with the grade sink.
func CustomKey(assignmentID, questionID string) string {
	return assignmentID + ":" + questionID
}

// StageStore holds StageData between requests. Reads happen at request
// start and writes at request end; concurrent requests for the same attempt
// are last-writer-wins (accepted, one user answering one question twice at
// the same time is not a supported scenario).
type StageStore interface {
	// Get returns nil when no attempt is in progress.
	Get(ctx context.Context, key string) (*StageData, error)
	Put(ctx context.Context, key string, data *StageData) error
	Clear(ctx context.Context, key string) error
}
