// Package http is the thin JSON layer over the workflow engine. One
// resource path serves the whole response flow; the stage a request lands
// on is decided by the dispatcher, never by the client.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/peerinst/internal/auth"
	"github.com/mind-engage/peerinst/internal/question"
	"github.com/mind-engage/peerinst/internal/workflow"
)

// MountQuestionFlow registers the flow endpoints on an authenticated router.
func MountQuestionFlow(r chi.Router, engine *workflow.Engine, store question.Store) {
	r.Get("/assignments/{assignmentID}/questions/{questionID}", showQuestionHandler(engine, store))
	r.Post("/assignments/{assignmentID}/questions/{questionID}", submitQuestionHandler(engine, store))
}

// studentQuestion is the answer-key-free view of a question.
type studentQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

func studentView(q question.Question) studentQuestion {
	sq := studentQuestion{ID: q.ID, Text: q.Text}
	for i, c := range q.Choices {
		sq.Choices = append(sq.Choices, choice{Label: q.ChoiceLabel(i + 1), Text: c.Text})
	}
	return sq
}

func showQuestionHandler(engine *workflow.Engine, store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		assignmentID := chi.URLParam(r, "assignmentID")
		userToken := auth.SubjectFromContext(ctx)
		q, err := store.GetQuestion(ctx, chi.URLParam(r, "questionID"))
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		stage, err := engine.CurrentStage(ctx, q, assignmentID, userToken)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		engine.RecordShow(q, assignmentID, userToken, stage)

		payload := map[string]any{"stage": stage, "question": studentView(q)}
		switch stage {
		case workflow.StageStart:
			// Nothing to add; the client renders the form.
		case workflow.StageReview:
			page, err := engine.Review(ctx, q, assignmentID, userToken)
			if err != nil {
				writeFlowError(ctx, w, engine, q, assignmentID, userToken, err)
				return
			}
			payload["review"] = page
		case workflow.StageSequentialReview:
			page, err := engine.SequentialReview(ctx, q, assignmentID, userToken)
			if err != nil {
				writeFlowError(ctx, w, engine, q, assignmentID, userToken, err)
				return
			}
			payload["sequential_review"] = page
		case workflow.StageSummary:
			summary, err := engine.Summary(ctx, q, assignmentID, userToken)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			payload["summary"] = summary
		}
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// submission covers all three stage-specific POST bodies; which fields are
// read depends on the stage the attempt is in.
type submission struct {
	FirstAnswerChoice  int    `json:"first_answer_choice"`
	Rationale          string `json:"rationale"`
	Vote               string `json:"vote"`
	SecondAnswerChoice int    `json:"second_answer_choice"`
	ChosenRationaleID  string `json:"chosen_rationale_id"`
}

func submitQuestionHandler(engine *workflow.Engine, store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		assignmentID := chi.URLParam(r, "assignmentID")
		userToken := auth.SubjectFromContext(ctx)
		q, err := store.GetQuestion(ctx, chi.URLParam(r, "questionID"))
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		var sub submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		stage, err := engine.CurrentStage(ctx, q, assignmentID, userToken)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		switch stage {
		case workflow.StageStart:
			if err := engine.SubmitFirstAnswer(ctx, q, assignmentID, userToken, sub.FirstAnswerChoice, sub.Rationale); err != nil {
				writeFlowError(ctx, w, engine, q, assignmentID, userToken, err)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"completed_stage": workflow.CompletedStart})
		case workflow.StageSequentialReview:
			done, err := engine.SubmitSequentialVote(ctx, q, assignmentID, userToken, sub.Vote)
			if err != nil {
				writeFlowError(ctx, w, engine, q, assignmentID, userToken, err)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"done": done})
		case workflow.StageReview:
			answer, grade, err := engine.FinalizeReview(ctx, q, assignmentID, userToken, sub.SecondAnswerChoice, sub.ChosenRationaleID)
			if err != nil {
				writeFlowError(ctx, w, engine, q, assignmentID, userToken, err)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"answer": answer, "grade": grade})
		case workflow.StageSummary:
			http.Error(w, "question already answered", 400)
		}
	}
}

// writeFlowError maps workflow errors onto responses: validation errors
// re-display the form (400, no state change); reload conditions clear the
// attempt and tell the client to start over (409).
func writeFlowError(ctx context.Context, w http.ResponseWriter, engine *workflow.Engine, q question.Question, assignmentID, userToken string, err error) {
	var vErr *workflow.ValidationError
	if errors.As(err, &vErr) {
		w.WriteHeader(400)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": vErr.Msg})
		return
	}
	var rErr *workflow.ReloadError
	if errors.As(err, &rErr) {
		_ = engine.ClearStage(ctx, q, assignmentID, userToken)
		w.WriteHeader(409)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": rErr.Msg, "restart": true})
		return
	}
	http.Error(w, err.Error(), 500)
}
