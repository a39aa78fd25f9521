// Package workflow drives the peer-instruction response flow: a
// per-(student, question) state machine whose intermediate state lives in a
// StageStore across independent request/response cycles.
package workflow

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/mind-engage/peerinst/internal/grading"
	"github.com/mind-engage/peerinst/internal/question"
	"github.com/mind-engage/peerinst/internal/selection"
)

// Stage is the stage a request for a question should run.
type Stage string

const (
	StageStart            Stage = "start"
	StageReview           Stage = "review"
	StageSequentialReview Stage = "sequential-review"
	StageSummary          Stage = "summary"
)

// ValidationError rejects a malformed submission. The form is re-displayed
// with the message; no state mutation has occurred.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ReloadError aborts the attempt: callers must clear stage data and send the
// student back to Start, showing the message. Raised on inconsistent data,
// never under normal circumstances.
type ReloadError struct{ Msg string }

func (e *ReloadError) Error() string { return e.Msg }

// GradeSink receives the computed grade for a finished attempt.
// Fire-and-forget; a missing sink means the session is ungraded.
type GradeSink interface {
	Submit(ctx context.Context, userToken, customKey string, grade float64) error
}

// Engine orchestrates the stages against the durable store and the stage store.
type Engine struct {
	store  question.Store
	stages StageStore
	sink   GradeSink
	events *EventLogger
}

func NewEngine(store question.Store, stages StageStore, sink GradeSink, events *EventLogger) *Engine {
	return &Engine{store: store, stages: stages, sink: sink, events: events}
}

// ClearStage discards the in-progress attempt, used after a ReloadError.
func (e *Engine) ClearStage(ctx context.Context, q question.Question, assignmentID, userToken string) error {
	return e.stages.Clear(ctx, StageKey(userToken, assignmentID, q.ID))
}

// CurrentStage resolves which stage handler a request for this question
// should run: a committed Answer wins (summary, idempotent), then the
// completed-stage marker of the in-progress attempt, then start.
func (e *Engine) CurrentStage(ctx context.Context, q question.Question, assignmentID, userToken string) (Stage, error) {
	if _, err := e.store.GetAnswer(ctx, q.ID, assignmentID, userToken); err == nil {
		return StageSummary, nil
	} else if !errors.Is(err, question.ErrAnswerNotFound) {
		return "", err
	}
	sd, err := e.stages.Get(ctx, StageKey(userToken, assignmentID, q.ID))
	if err != nil {
		return "", err
	}
	switch {
	case sd == nil:
		return StageStart, nil
	case sd.Completed == CompletedStart && q.SequentialReview:
		return StageSequentialReview, nil
	case sd.Completed == CompletedStart:
		return StageReview, nil
	case sd.Completed == CompletedSequentialReview:
		return StageReview, nil
	default:
		return StageStart, nil
	}
}

// RecordShow emits the tracking event for a question render.
func (e *Engine) RecordShow(q question.Question, assignmentID, userToken string, stage Stage) {
	e.events.Emit("problem_show", userToken, e.eventData(q, assignmentID, map[string]any{
		"stage": stage,
	}))
}

// SubmitFirstAnswer runs the Start stage: it validates and stores the first
// choice and rationale in the stage store. No durable write happens yet.
func (e *Engine) SubmitFirstAnswer(ctx context.Context, q question.Question, assignmentID, userToken string, firstChoice int, rationale string) error {
	if firstChoice < 1 || firstChoice > len(q.Choices) {
		return &ValidationError{Msg: "first_answer_choice is out of range"}
	}
	if strings.TrimSpace(rationale) == "" {
		return &ValidationError{Msg: "a rationale is required"}
	}
	sd := &StageData{
		FirstAnswerChoice: firstChoice,
		Rationale:         rationale,
		Completed:         CompletedStart,
	}
	if err := e.stages.Put(ctx, StageKey(userToken, assignmentID, q.ID), sd); err != nil {
		return err
	}
	e.events.Emit("problem_check", userToken, e.eventData(q, assignmentID, map[string]any{
		"first_answer_choice": firstChoice,
		"success":             successWord(q.IsCorrect(firstChoice)),
		"rationale":           rationale,
	}))
	return nil
}

// ReviewPage is the simultaneous review: both offered choices with their
// rationale samples, shown together.
type ReviewPage struct {
	FirstAnswerChoice int                          `json:"first_answer_choice"`
	FirstChoiceLabel  string                       `json:"first_choice_label"`
	Rationale         string                       `json:"rationale"`
	RationaleChoices  []selection.ChoiceRationales `json:"rationale_choices"`
	AfterSequential   bool                         `json:"after_sequential"`
}

// Review renders the simultaneous review stage.
func (e *Engine) Review(ctx context.Context, q question.Question, assignmentID, userToken string) (*ReviewPage, error) {
	sd, err := e.openStage(ctx, q, assignmentID, userToken)
	if err != nil {
		return nil, err
	}
	if err := e.ensureRationaleChoices(ctx, q, assignmentID, userToken, sd, selection.ForAlgorithm(q.RationaleSelectionAlgorithm)); err != nil {
		return nil, err
	}
	return &ReviewPage{
		FirstAnswerChoice: sd.FirstAnswerChoice,
		FirstChoiceLabel:  q.ChoiceLabel(sd.FirstAnswerChoice),
		Rationale:         sd.Rationale,
		RationaleChoices:  sd.RationaleChoices,
		AfterSequential:   sd.Completed == CompletedSequentialReview,
	}, nil
}

// SequentialPage shows exactly one rationale of the sequence to vote on.
type SequentialPage struct {
	FirstChoiceLabel string       `json:"first_choice_label"`
	Rationale        string       `json:"rationale"`
	Current          SequenceItem `json:"current_rationale"`
	Index            int          `json:"rationale_index"`
	Total            int          `json:"rationale_count"`
}

// SequentialReview renders the current item of the vote-then-choose sub-flow,
// selecting and freezing the rationale sequence on first entry.
func (e *Engine) SequentialReview(ctx context.Context, q question.Question, assignmentID, userToken string) (*SequentialPage, error) {
	sd, err := e.openStage(ctx, q, assignmentID, userToken)
	if err != nil {
		return nil, err
	}
	if sd.RationaleSequence == nil {
		// Sequential review always samples with the simple algorithm; the
		// configured algorithm applies to the final simultaneous review only.
		if err := e.ensureRationaleChoices(ctx, q, assignmentID, userToken, sd, selection.ForAlgorithm(selection.AlgorithmSimple)); err != nil {
			return nil, err
		}
		groups := make([][]SequenceItem, 0, len(sd.RationaleChoices))
		for _, cr := range sd.RationaleChoices {
			var group []SequenceItem
			for _, opt := range cr.Rationales {
				if opt.ID == "" {
					continue // the stick-with-own sentinel is not voted on
				}
				group = append(group, SequenceItem{ID: opt.ID, Label: cr.Label, Text: opt.Text})
			}
			groups = append(groups, group)
		}
		sd.RationaleSequence = roundRobin(groups)
		sd.RationaleVotes = map[string]string{}
		sd.RationaleIndex = 0
		if len(sd.RationaleSequence) == 0 {
			return nil, &ReloadError{Msg: "Can't proceed since the course staff did not provide example answers."}
		}
		if err := e.stages.Put(ctx, StageKey(userToken, assignmentID, q.ID), sd); err != nil {
			return nil, err
		}
	}
	if sd.RationaleIndex >= len(sd.RationaleSequence) {
		return nil, &ReloadError{Msg: "This attempt is in an inconsistent state. Please start over with the question."}
	}
	return &SequentialPage{
		FirstChoiceLabel: q.ChoiceLabel(sd.FirstAnswerChoice),
		Rationale:        sd.Rationale,
		Current:          sd.RationaleSequence[sd.RationaleIndex],
		Index:            sd.RationaleIndex,
		Total:            len(sd.RationaleSequence),
	}, nil
}

// SubmitSequentialVote records an up/down vote on the current sequence item
// and advances the cursor. Once every item has been voted on, the attempt
// moves to the final simultaneous review.
func (e *Engine) SubmitSequentialVote(ctx context.Context, q question.Question, assignmentID, userToken, vote string) (done bool, err error) {
	if vote != "up" && vote != "down" {
		return false, &ValidationError{Msg: "vote must be up or down"}
	}
	sd, err := e.openStage(ctx, q, assignmentID, userToken)
	if err != nil {
		return false, err
	}
	if sd.RationaleSequence == nil || sd.RationaleIndex >= len(sd.RationaleSequence) {
		return false, &ReloadError{Msg: "This attempt is in an inconsistent state. Please start over with the question."}
	}
	current := sd.RationaleSequence[sd.RationaleIndex]
	if sd.RationaleVotes == nil {
		sd.RationaleVotes = map[string]string{}
	}
	sd.RationaleVotes[current.ID] = vote
	sd.RationaleIndex++
	if sd.RationaleIndex == len(sd.RationaleSequence) {
		sd.Completed = CompletedSequentialReview
	}
	if err := e.stages.Put(ctx, StageKey(userToken, assignmentID, q.ID), sd); err != nil {
		return false, err
	}
	return sd.Completed == CompletedSequentialReview, nil
}

// FinalizeReview commits the attempt: it validates the second choice against
// the chosen rationale, writes the durable Answer, replays sequential votes,
// clears the stage data and emits the grade.
func (e *Engine) FinalizeReview(ctx context.Context, q question.Question, assignmentID, userToken string, secondChoice int, chosenRationaleID string) (question.Answer, float64, error) {
	sd, err := e.openStage(ctx, q, assignmentID, userToken)
	if err != nil {
		return question.Answer{}, 0, err
	}
	selector := selection.ForAlgorithm(q.RationaleSelectionAlgorithm)
	if err := e.ensureRationaleChoices(ctx, q, assignmentID, userToken, sd, selector); err != nil {
		return question.Answer{}, 0, err
	}
	if !offeredChoice(sd.RationaleChoices, secondChoice) {
		return question.Answer{}, 0, &ValidationError{Msg: "second_answer_choice must be one of the offered choices"}
	}
	if chosenRationaleID != "" {
		chosen, err := e.store.GetAnswerByID(ctx, chosenRationaleID)
		if errors.Is(err, question.ErrAnswerNotFound) {
			return question.Answer{}, 0, &ReloadError{Msg: "The rationale you chose does not exist anymore. Please start over with the question."}
		}
		if err != nil {
			return question.Answer{}, 0, err
		}
		if chosen.FirstAnswerChoice != secondChoice {
			return question.Answer{}, 0, &ReloadError{Msg: "The rationale you chose does not match your second answer choice. Please start over with the question."}
		}
	}

	answer, err := e.store.SaveAnswer(ctx, question.Answer{
		QuestionID:         q.ID,
		AssignmentID:       assignmentID,
		UserToken:          userToken,
		FirstAnswerChoice:  sd.FirstAnswerChoice,
		Rationale:          sd.Rationale,
		SecondAnswerChoice: secondChoice,
		ChosenRationaleID:  chosenRationaleID,
		ShowToOthers:       true,
	})
	if err != nil {
		return question.Answer{}, 0, err
	}
	if chosenRationaleID != "" {
		e.recordVote(ctx, sd, assignmentID, userToken, chosenRationaleID, question.VoteFinalChoice)
	}
	e.replaySequentialVotes(ctx, sd, assignmentID, userToken)

	firstCorrect := q.IsCorrect(sd.FirstAnswerChoice)
	secondCorrect := q.IsCorrect(secondChoice)
	grade := grading.ForQuestion(q).Grade(firstCorrect, secondCorrect)

	data := e.eventData(q, assignmentID, map[string]any{
		"second_answer_choice": secondChoice,
		"switch":               sd.FirstAnswerChoice != secondChoice,
		"rationale_algorithm": map[string]any{
			"name":    selector.Name(),
			"version": selector.Version(),
		},
		"rationales":          flattenRationales(sd.RationaleChoices),
		"chosen_rationale_id": chosenRationaleID,
		"success":             successWord(secondCorrect),
		"grade":               grade,
	})
	e.events.Emit("problem_check", userToken, data)
	e.events.Emit("save_problem_success", userToken, data)

	if err := e.stages.Clear(ctx, StageKey(userToken, assignmentID, q.ID)); err != nil {
		return question.Answer{}, 0, err
	}
	e.sendGrade(ctx, q, assignmentID, userToken, grade)
	return answer, grade, nil
}

// Summary describes a committed attempt; serving it is idempotent and
// re-sends the grade.
type Summary struct {
	FirstChoiceLabel  string           `json:"first_choice_label"`
	SecondChoiceLabel string           `json:"second_choice_label"`
	Rationale         string           `json:"rationale"`
	ChosenRationale   *question.Answer `json:"chosen_rationale,omitempty"`
	Grade             float64          `json:"grade"`
}

func (e *Engine) Summary(ctx context.Context, q question.Question, assignmentID, userToken string) (*Summary, error) {
	answer, err := e.store.GetAnswer(ctx, q.ID, assignmentID, userToken)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		FirstChoiceLabel:  q.ChoiceLabel(answer.FirstAnswerChoice),
		SecondChoiceLabel: q.ChoiceLabel(answer.SecondAnswerChoice),
		Rationale:         answer.Rationale,
		Grade: grading.ForQuestion(q).Grade(
			q.IsCorrect(answer.FirstAnswerChoice), q.IsCorrect(answer.SecondAnswerChoice)),
	}
	if answer.ChosenRationaleID != "" {
		if chosen, err := e.store.GetAnswerByID(ctx, answer.ChosenRationaleID); err == nil {
			s.ChosenRationale = &chosen
		}
	}
	e.sendGrade(ctx, q, assignmentID, userToken, s.Grade)
	return s, nil
}

// openStage loads the in-progress attempt; a missing or not-yet-started one
// sends the student back to Start.
func (e *Engine) openStage(ctx context.Context, q question.Question, assignmentID, userToken string) (*StageData, error) {
	sd, err := e.stages.Get(ctx, StageKey(userToken, assignmentID, q.ID))
	if err != nil {
		return nil, err
	}
	if sd == nil || sd.Completed == CompletedNone {
		return nil, &ReloadError{Msg: "Please answer the question first."}
	}
	return sd, nil
}

// ensureRationaleChoices freezes the sample for this attempt on first use.
// The deterministic per-attempt RNG means a cleared stage store reproduces
// the same sample; the stored copy exists so votes and attributions stay
// consistent within the attempt.
func (e *Engine) ensureRationaleChoices(ctx context.Context, q question.Question, assignmentID, userToken string, sd *StageData, selector selection.Selector) error {
	if sd.RationaleChoices != nil {
		return nil
	}
	rng := selection.NewRNG(userToken, assignmentID, q.ID)
	pool, err := e.store.PublicRationales(ctx, q.ID)
	if err != nil {
		return err
	}
	choices, err := selector.Choose(rng, sd.FirstAnswerChoice, sd.Rationale, q, pool)
	var selErr *selection.Error
	if errors.As(err, &selErr) {
		return &ReloadError{Msg: selErr.Error()}
	}
	if err != nil {
		return err
	}
	attributions, err := anonymize(ctx, e.store, rng, choices, q.FakeAttributions)
	if err != nil {
		return err
	}
	sd.RationaleChoices = choices
	sd.FakeAttributions = attributions
	return e.stages.Put(ctx, StageKey(userToken, assignmentID, q.ID), sd)
}

// replaySequentialVotes turns the stage-store vote cursor into durable
// counters and vote records. Votes on rationales deleted mid-flight are
// silently dropped; staff may legitimately delete an answer mid-session.
func (e *Engine) replaySequentialVotes(ctx context.Context, sd *StageData, assignmentID, userToken string) {
	for id, vote := range sd.RationaleVotes {
		voteType := question.VoteUp
		if vote == "down" {
			voteType = question.VoteDown
		}
		if err := e.store.IncrementVote(ctx, id, voteType); err != nil {
			continue
		}
		e.recordVote(ctx, sd, assignmentID, userToken, id, voteType)
	}
}

func (e *Engine) recordVote(ctx context.Context, sd *StageData, assignmentID, userToken, answerID string, voteType question.VoteType) {
	attr := sd.FakeAttributions[answerID]
	if err := e.store.SaveVote(ctx, question.AnswerVote{
		AnswerID:     answerID,
		AssignmentID: assignmentID,
		UserToken:    userToken,
		FakeUsername: attr.Username,
		FakeCountry:  attr.Country,
		VoteType:     voteType,
	}); err != nil {
		log.Printf("save vote on %s: %v", answerID, err)
	}
}

func (e *Engine) sendGrade(ctx context.Context, q question.Question, assignmentID, userToken string, grade float64) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Submit(ctx, userToken, CustomKey(assignmentID, q.ID), grade); err != nil {
		log.Printf("grade submit for %s: %v", userToken, err)
	}
}

func (e *Engine) eventData(q question.Question, assignmentID string, data map[string]any) map[string]any {
	data["assignment_id"] = assignmentID
	data["question_id"] = q.ID
	data["question_text"] = q.Text
	data["max_grade"] = 1.0
	return data
}

func successWord(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

func offeredChoice(choices []selection.ChoiceRationales, choice int) bool {
	for _, cr := range choices {
		if cr.Choice == choice {
			return true
		}
	}
	return false
}

func flattenRationales(choices []selection.ChoiceRationales) []map[string]any {
	out := []map[string]any{}
	for _, cr := range choices {
		for _, opt := range cr.Rationales {
			if opt.ID == "" {
				continue
			}
			out = append(out, map[string]any{"id": opt.ID, "text": opt.Text})
		}
	}
	return out
}

// roundRobin interleaves the per-choice groups: one item from each group in
// turn, continuing with the remaining group once the other is exhausted.
func roundRobin(groups [][]SequenceItem) []SequenceItem {
	var out []SequenceItem
	for i := 0; ; i++ {
		advanced := false
		for _, g := range groups {
			if i < len(g) {
				out = append(out, g[i])
				advanced = true
			}
		}
		if !advanced {
			return out
		}
	}
}
