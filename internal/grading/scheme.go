// Package grading computes the grade of a completed question attempt from
// the correctness of the two submitted answer choices.
package grading

import "github.com/mind-engage/peerinst/internal/question"

// Scheme maps the correctness of the first and second answer to a grade in [0,1].
type Scheme interface {
	Grade(firstCorrect, secondCorrect bool) float64
}

// ForQuestion resolves a question's configured scheme; standard is the default.
func ForQuestion(q question.Question) Scheme {
	switch q.GradingScheme {
	case question.GradingAdvanced:
		return advancedScheme{}
	default:
		return standardScheme{}
	}
}

// standardScheme grades only the final answer.
type standardScheme struct{}

func (standardScheme) Grade(_, secondCorrect bool) float64 {
	if secondCorrect {
		return 1.0
	}
	return 0.0
}

// advancedScheme gives half credit for each correct answer, so a student who
// started wrong and switched to a correct choice still scores 0.5.
type advancedScheme struct{}

func (advancedScheme) Grade(firstCorrect, secondCorrect bool) float64 {
	grade := 0.0
	if firstCorrect {
		grade += 0.5
	}
	if secondCorrect {
		grade += 0.5
	}
	return grade
}
