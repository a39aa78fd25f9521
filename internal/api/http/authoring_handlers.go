package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/peerinst/internal/question"
)

// MountAuthoring registers the staff endpoints for seeding questions and
// example rationales.
func MountAuthoring(r chi.Router, store question.Store) {
	r.Put("/questions/{questionID}", putQuestionHandler(store))
	r.Post("/questions/{questionID}/rationales", seedRationaleHandler(store))
}

func putQuestionHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q question.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		q.ID = chi.URLParam(r, "questionID")
		if len(q.Choices) < 2 {
			http.Error(w, "a question needs at least 2 choices", 400)
			return
		}
		if len(q.CorrectChoices()) == 0 {
			http.Error(w, "a question needs at least 1 correct choice", 400)
			return
		}
		if q.AnswerStyle == "" {
			q.AnswerStyle = question.StyleAlphabetic
		}
		if q.GradingScheme == "" {
			q.GradingScheme = question.GradingStandard
		}
		if err := store.PutQuestion(r.Context(), q); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

// seedRationaleHandler creates an expert/seed answer row (empty user token)
// so selection has material before any student has gone through.
func seedRationaleHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID := chi.URLParam(r, "questionID")
		var req struct {
			FirstAnswerChoice int    `json:"first_answer_choice"`
			Rationale         string `json:"rationale"`
			Expert            bool   `json:"expert"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		q, err := store.GetQuestion(r.Context(), questionID)
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		if req.FirstAnswerChoice < 1 || req.FirstAnswerChoice > len(q.Choices) {
			http.Error(w, "first_answer_choice is out of range", 400)
			return
		}
		if req.Rationale == "" {
			http.Error(w, "rationale required", 400)
			return
		}
		a, err := store.SaveAnswer(r.Context(), question.Answer{
			QuestionID:        questionID,
			FirstAnswerChoice: req.FirstAnswerChoice,
			Rationale:         req.Rationale,
			Expert:            req.Expert,
			ShowToOthers:      true,
		})
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}
