package question

import "fmt"

// AnswerStyle controls how choice ordinals are rendered as labels.
type AnswerStyle string

const (
	StyleAlphabetic AnswerStyle = "alphabetic" // A, B, C, ...
	StyleNumeric    AnswerStyle = "numeric"    // 1, 2, 3, ...
)

// GradingScheme names the grade computation applied at final review.
type GradingScheme string

const (
	GradingStandard GradingScheme = "standard"
	GradingAdvanced GradingScheme = "advanced"
)

type Choice struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type Question struct {
	ID                          string        `json:"id"`
	Text                        string        `json:"text"`
	Choices                     []Choice      `json:"choices"` // ordinal position defines the label
	AnswerStyle                 AnswerStyle   `json:"answer_style"`
	RationaleSelectionAlgorithm string        `json:"rationale_selection_algorithm"`
	SequentialReview            bool          `json:"sequential_review"`
	GradingScheme               GradingScheme `json:"grading_scheme"`
	FakeAttributions            bool          `json:"fake_attributions"`
}

// IsCorrect reports whether the 1-based choice ordinal is a correct answer.
func (q Question) IsCorrect(choice int) bool {
	if choice < 1 || choice > len(q.Choices) {
		return false
	}
	return q.Choices[choice-1].Correct
}

// ChoiceLabel renders a 1-based choice ordinal per the question's answer style.
func (q Question) ChoiceLabel(choice int) string {
	if q.AnswerStyle == StyleNumeric {
		return fmt.Sprintf("%d", choice)
	}
	return string(rune('A' + choice - 1))
}

// CorrectChoices returns the 1-based ordinals of all correct choices.
func (q Question) CorrectChoices() []int {
	var out []int
	for i, c := range q.Choices {
		if c.Correct {
			out = append(out, i+1)
		}
	}
	return out
}

// Answer is one student's full pass through a question, or a seed rationale
// provided by course staff (empty UserToken). Identity fields are immutable
// after creation; only the vote counters change afterwards.
type Answer struct {
	ID                 string `json:"id"`
	QuestionID         string `json:"question_id"`
	AssignmentID       string `json:"assignment_id"`
	UserToken          string `json:"user_token"`
	FirstAnswerChoice  int    `json:"first_answer_choice"`
	Rationale          string `json:"rationale"`
	SecondAnswerChoice int    `json:"second_answer_choice,omitempty"` // 0 until final review commits
	ChosenRationaleID  string `json:"chosen_rationale_id,omitempty"`  // "" = stuck with own
	ShowToOthers       bool   `json:"show_to_others"`
	Expert             bool   `json:"expert"`
	Upvotes            int    `json:"upvotes"`
	Downvotes          int    `json:"downvotes"`
	CreatedAt          int64  `json:"created_at,omitempty"`
}

type VoteType string

const (
	VoteUp          VoteType = "upvote"
	VoteDown        VoteType = "downvote"
	VoteFinalChoice VoteType = "final_choice"
)

// AnswerVote is an append-only provenance record of a vote cast on an Answer,
// including the fake attribution that was on display at the time.
type AnswerVote struct {
	ID           string   `json:"id"`
	AnswerID     string   `json:"answer_id"`
	AssignmentID string   `json:"assignment_id"`
	UserToken    string   `json:"user_token"`
	FakeUsername string   `json:"fake_username,omitempty"`
	FakeCountry  string   `json:"fake_country,omitempty"`
	VoteType     VoteType `json:"vote_type"`
	CreatedAt    int64    `json:"created_at,omitempty"`
}

// Rationale is the read-model the selection algorithms work on: one public
// peer rationale with the metadata the algorithms filter and weigh by.
// Votes counts how often the answer was picked as a final rationale by other
// students; the up/down counters are display statistics and not used here.
type Rationale struct {
	ID     string
	Choice int // 1-based ordinal of the author's first answer choice
	Text   string
	Expert bool
	Votes  int
}
