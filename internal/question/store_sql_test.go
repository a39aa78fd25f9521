package question_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mind-engage/peerinst/internal/db"
	"github.com/mind-engage/peerinst/internal/question"
)

func newSQLStore(t *testing.T) *question.SQLStore {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return question.NewSQLStore(dbh, "sqlite")
}

func TestSQLStoreQuestionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	q := question.Question{
		ID:   "q1",
		Text: "Pick one",
		Choices: []question.Choice{
			{Text: "wrong"},
			{Text: "right", Correct: true},
		},
		AnswerStyle:                 question.StyleAlphabetic,
		RationaleSelectionAlgorithm: "simple",
		SequentialReview:            true,
		GradingScheme:               question.GradingAdvanced,
		FakeAttributions:            true,
	}
	if err := store.PutQuestion(ctx, q); err != nil {
		t.Fatalf("put question: %v", err)
	}
	got, err := store.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if got.Text != q.Text || len(got.Choices) != 2 || !got.Choices[1].Correct {
		t.Fatalf("question round trip mismatch: %+v", got)
	}
	if !got.SequentialReview || got.GradingScheme != question.GradingAdvanced || !got.FakeAttributions {
		t.Fatalf("flags lost in round trip: %+v", got)
	}

	// Upsert: a second put updates in place.
	q.Text = "Pick one, revised"
	if err := store.PutQuestion(ctx, q); err != nil {
		t.Fatalf("update question: %v", err)
	}
	got, _ = store.GetQuestion(ctx, "q1")
	if got.Text != "Pick one, revised" {
		t.Fatalf("update not applied: %q", got.Text)
	}

	if _, err := store.GetQuestion(ctx, "nope"); !errors.Is(err, question.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestSQLStoreAnswersAndVotes(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	if err := store.PutQuestion(ctx, question.Question{
		ID: "q1", Text: "t", Choices: []question.Choice{{}, {Correct: true}},
	}); err != nil {
		t.Fatalf("put question: %v", err)
	}

	seed, err := store.SaveAnswer(ctx, question.Answer{
		QuestionID: "q1", FirstAnswerChoice: 2, Rationale: "seed", ShowToOthers: true, Expert: true,
	})
	if err != nil {
		t.Fatalf("save seed: %v", err)
	}
	student, err := store.SaveAnswer(ctx, question.Answer{
		QuestionID: "q1", AssignmentID: "a1", UserToken: "alice",
		FirstAnswerChoice: 1, SecondAnswerChoice: 2, Rationale: "mine",
		ChosenRationaleID: seed.ID, ShowToOthers: true,
	})
	if err != nil {
		t.Fatalf("save student answer: %v", err)
	}

	got, err := store.GetAnswer(ctx, "q1", "a1", "alice")
	if err != nil {
		t.Fatalf("get answer: %v", err)
	}
	if got.ID != student.ID || got.ChosenRationaleID != seed.ID || got.SecondAnswerChoice != 2 {
		t.Fatalf("answer round trip mismatch: %+v", got)
	}

	rationales, err := store.PublicRationales(ctx, "q1")
	if err != nil {
		t.Fatalf("public rationales: %v", err)
	}
	var seedRow *question.Rationale
	for i := range rationales {
		if rationales[i].ID == seed.ID {
			seedRow = &rationales[i]
		}
	}
	if seedRow == nil || !seedRow.Expert {
		t.Fatalf("seed rationale missing or not expert: %+v", rationales)
	}
	if seedRow.Votes != 1 {
		t.Fatalf("seed votes = %d; want 1 (one final choice)", seedRow.Votes)
	}

	if err := store.IncrementVote(ctx, seed.ID, question.VoteUp); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.IncrementVote(ctx, "missing", question.VoteUp); !errors.Is(err, question.ErrAnswerNotFound) {
		t.Fatalf("expected ErrAnswerNotFound, got %v", err)
	}
	after, _ := store.GetAnswerByID(ctx, seed.ID)
	if after.Upvotes != 1 {
		t.Fatalf("upvotes = %d; want 1", after.Upvotes)
	}

	if err := store.SaveVote(ctx, question.AnswerVote{
		AnswerID: seed.ID, AssignmentID: "a1", UserToken: "alice",
		FakeUsername: "ada", FakeCountry: "Iceland", VoteType: question.VoteFinalChoice,
	}); err != nil {
		t.Fatalf("save vote: %v", err)
	}
}
