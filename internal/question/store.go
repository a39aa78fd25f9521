package question

import (
	"context"
	"errors"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrAnswerNotFound   = errors.New("answer not found")
)

// Store is the durable repository the workflow runs against. Answer and
// AnswerVote rows belong to the store once written; the workflow never
// mutates them again except through IncrementVote.
type Store interface {
	PutQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, id string) (Question, error)

	// GetAnswer looks up the answer a user committed for a question within an
	// assignment. Returns ErrAnswerNotFound when the attempt is still open.
	GetAnswer(ctx context.Context, questionID, assignmentID, userToken string) (Answer, error)
	GetAnswerByID(ctx context.Context, id string) (Answer, error)
	SaveAnswer(ctx context.Context, a Answer) (Answer, error)

	// PublicRationales returns all show-to-others answers for a question in a
	// stable order, so deterministic selection stays reproducible.
	PublicRationales(ctx context.Context, questionID string) ([]Rationale, error)

	SaveVote(ctx context.Context, v AnswerVote) error
	// IncrementVote bumps the advisory up/down counter on an answer.
	// Incrementing a deleted answer returns ErrAnswerNotFound.
	IncrementVote(ctx context.Context, answerID string, vote VoteType) error

	// Name pools for fake attributions. Empty pools disable anonymization.
	FakeUsernames(ctx context.Context) ([]string, error)
	FakeCountries(ctx context.Context) ([]string, error)
}
