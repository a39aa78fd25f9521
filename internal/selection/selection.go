// Package selection implements the rationale-selection algorithms shown
// during question review.
//
// Every algorithm is a pure function of (rng, first answer choice, entered
// rationale, question, rationale pool). The pool is the ordered set of
// public peer rationales for the question; keeping the algorithms free of
// repository access makes them deterministic for a given seed and trivially
// testable.
package selection

import (
	"hash/fnv"
	"math/rand"

	"github.com/mind-engage/peerinst/internal/question"
)

const (
	AlgorithmSimple                     = "simple"
	AlgorithmPreferExpertAndHighlyVoted = "prefer_expert_and_highly_voted"
)

// OwnRationaleSentinel is appended to the first choice's rationale list so
// the student can stick with what they wrote.
const OwnRationaleSentinel = "I stick with my own rationale."

// RationaleOption is one selectable rationale. An empty ID marks the
// stick-with-own sentinel.
type RationaleOption struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// ChoiceRationales groups the sampled rationales of one offered answer choice.
type ChoiceRationales struct {
	Choice     int               `json:"choice"`
	Label      string            `json:"label"`
	Rationales []RationaleOption `json:"rationales"`
}

// Error is raised when selection cannot proceed; its message is shown to the
// student and the attempt restarts.
type Error struct{ msg string }

func (e *Error) Error() string { return e.msg }

// Selector picks the two offered choices and their rationale samples.
type Selector interface {
	// Choose returns exactly two offered choices, the first being the
	// student's own. The first choice's list ends with the own-rationale
	// sentinel.
	Choose(rng *rand.Rand, firstChoice int, enteredRationale string, q question.Question, pool []question.Rationale) ([]ChoiceRationales, error)
	Name() string
	Version() string
	Description() string
}

// ForAlgorithm resolves a question's configured algorithm name. Unknown
// names fall back to simple so a misconfigured question still serves.
func ForAlgorithm(name string) Selector {
	if name == AlgorithmPreferExpertAndHighlyVoted {
		return preferExpertSelector{}
	}
	return simpleSelector{}
}

// NewRNG builds the deterministic per-attempt generator. Reloading the same
// in-progress attempt reproduces the identical sample, so students cannot
// farm extra rationales by refreshing.
func NewRNG(userToken, assignmentID, questionID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(userToken))
	h.Write([]byte{0})
	h.Write([]byte(assignmentID))
	h.Write([]byte{0})
	h.Write([]byte(questionID))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

const perChoiceSamples = 4

type simpleSelector struct{}

func (simpleSelector) Name() string    { return AlgorithmSimple }
func (simpleSelector) Version() string { return "v1.1" }
func (simpleSelector) Description() string {
	return "The two answer choices presented will include the answer the user chose. " +
		"If the user's answer wasn't correct, the second choice will be a correct answer. " +
		"If the user's answer was correct, the second choice presented will be weighted by the " +
		"number of available rationales. Up to four rationales are presented per choice."
}

func (simpleSelector) Choose(rng *rand.Rand, firstChoice int, _ string, q question.Question, pool []question.Rationale) ([]ChoiceRationales, error) {
	return chooseForReview(rng, firstChoice, q, pool, func(rng *rand.Rand, rs []question.Rationale) []question.Rationale {
		return sampleRationales(rng, rs, perChoiceSamples)
	})
}

type preferExpertSelector struct{}

func (preferExpertSelector) Name() string    { return AlgorithmPreferExpertAndHighlyVoted }
func (preferExpertSelector) Version() string { return "v1.0" }
func (preferExpertSelector) Description() string {
	return "Like simple selection, but the sample includes at least one expert rationale, " +
		"if available, and at least one rationale with more than half the maximum number of votes, " +
		"if available."
}

func (preferExpertSelector) Choose(rng *rand.Rand, firstChoice int, _ string, q question.Question, pool []question.Rationale) ([]ChoiceRationales, error) {
	return chooseForReview(rng, firstChoice, q, pool, func(rng *rand.Rand, rs []question.Rationale) []question.Rationale {
		var chosen []question.Rationale
		remaining := append([]question.Rationale(nil), rs...)

		// Add an expert rationale if one exists.
		if experts := filter(remaining, func(r question.Rationale) bool { return r.Expert }); len(experts) > 0 {
			pick := experts[rng.Intn(len(experts))]
			chosen = append(chosen, pick)
			remaining = exclude(remaining, pick.ID)
		}

		// Add a highly voted rationale if one exists.
		maxVotes := 0
		for _, r := range remaining {
			if r.Votes > maxVotes {
				maxVotes = r.Votes
			}
		}
		if highly := filter(remaining, func(r question.Rationale) bool { return r.Votes > maxVotes/2 }); len(highly) > 0 {
			pick := highly[rng.Intn(len(highly))]
			chosen = append(chosen, pick)
			remaining = exclude(remaining, pick.ID)
		}

		// Fill up with random other rationales, then shuffle so the expert
		// and high-vote items are not positionally predictable.
		chosen = append(chosen, sampleRationales(rng, remaining, perChoiceSamples-len(chosen))...)
		rng.Shuffle(len(chosen), func(i, j int) { chosen[i], chosen[j] = chosen[j], chosen[i] })
		return chosen
	})
}

// chooseForReview implements the part shared by all algorithms: picking the
// second offered choice and assembling the output shape.
func chooseForReview(rng *rand.Rand, firstChoice int, q question.Question, pool []question.Rationale, pick func(*rand.Rand, []question.Rationale) []question.Rationale) ([]ChoiceRationales, error) {
	var secondChoice int
	if q.IsCorrect(firstChoice) {
		// The second choice must have rationales to show, so it is drawn by
		// indexing into the pool of competing rationales: choices with more
		// rationales are proportionally more likely to be offered. This is
		// deliberate; do not replace with a uniform draw over choices.
		others := filter(pool, func(r question.Rationale) bool { return r.Choice != firstChoice })
		if len(others) == 0 {
			return nil, &Error{msg: "Can't proceed since the course staff did not provide example answers."}
		}
		secondChoice = others[rng.Intn(len(others))].Choice
	} else {
		// A correct choice is assumed to exist; empty here is an input-data
		// error, not handled defensively.
		correct := q.CorrectChoices()
		secondChoice = correct[rng.Intn(len(correct))]
	}

	out := make([]ChoiceRationales, 0, 2)
	for _, choice := range []int{firstChoice, secondChoice} {
		rs := filter(pool, func(r question.Rationale) bool { return r.Choice == choice })
		options := make([]RationaleOption, 0, perChoiceSamples+1)
		for _, r := range pick(rng, rs) {
			options = append(options, RationaleOption{ID: r.ID, Text: r.Text})
		}
		out = append(out, ChoiceRationales{Choice: choice, Label: q.ChoiceLabel(choice), Rationales: options})
	}
	out[0].Rationales = append(out[0].Rationales, RationaleOption{Text: OwnRationaleSentinel})
	return out, nil
}

// sampleRationales draws up to k items without replacement, in random order.
func sampleRationales(rng *rand.Rand, pool []question.Rationale, k int) []question.Rationale {
	if k > len(pool) {
		k = len(pool)
	}
	if k <= 0 {
		return nil
	}
	out := make([]question.Rationale, 0, k)
	for _, i := range rng.Perm(len(pool))[:k] {
		out = append(out, pool[i])
	}
	return out
}

func filter(pool []question.Rationale, keep func(question.Rationale) bool) []question.Rationale {
	var out []question.Rationale
	for _, r := range pool {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func exclude(pool []question.Rationale, id string) []question.Rationale {
	return filter(pool, func(r question.Rationale) bool { return r.ID != id })
}
