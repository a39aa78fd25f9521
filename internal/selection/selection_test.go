package selection_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/mind-engage/peerinst/internal/question"
	"github.com/mind-engage/peerinst/internal/selection"
)

func threeChoiceQuestion() question.Question {
	return question.Question{
		ID:          "q1",
		Text:        "What happens?",
		AnswerStyle: question.StyleAlphabetic,
		Choices: []question.Choice{
			{Text: "first", Correct: false},
			{Text: "second", Correct: false},
			{Text: "third", Correct: true},
		},
	}
}

func pool(rs ...question.Rationale) []question.Rationale { return rs }

func r(id string, choice int) question.Rationale {
	return question.Rationale{ID: id, Choice: choice, Text: "rationale " + id}
}

func TestOutputShape(t *testing.T) {
	q := threeChoiceQuestion()
	sel := selection.ForAlgorithm(selection.AlgorithmSimple)
	rng := selection.NewRNG("alice", "a1", q.ID)

	choices, err := sel.Choose(rng, 1, "my rationale", q, pool(
		r("r1", 1), r("r2", 3), r("r3", 3),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(choices) != 2 {
		t.Fatalf("expected exactly 2 offered choices, got %d", len(choices))
	}
	if choices[0].Choice != 1 {
		t.Fatalf("first offered choice must equal the submitted choice; got %d", choices[0].Choice)
	}
	if choices[0].Label != "A" {
		t.Fatalf("expected label A, got %q", choices[0].Label)
	}
	// First answer was incorrect, so the second offered choice must be correct.
	if choices[1].Choice != 3 {
		t.Fatalf("expected correct choice 3 offered, got %d", choices[1].Choice)
	}
	last := choices[0].Rationales[len(choices[0].Rationales)-1]
	if last.ID != "" || last.Text != selection.OwnRationaleSentinel {
		t.Fatalf("first choice's list must end with the own-rationale sentinel; got %+v", last)
	}
}

func TestDeterminism(t *testing.T) {
	q := threeChoiceQuestion()
	q.Choices[0].Correct = true // first choice correct: weighted second-choice path
	p := pool(
		r("r1", 1), r("r2", 2), r("r3", 2), r("r4", 3), r("r5", 3), r("r6", 3),
	)
	sel := selection.ForAlgorithm(selection.AlgorithmSimple)

	first, err := sel.Choose(selection.NewRNG("bob", "a1", q.ID), 1, "x", q, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := sel.Choose(selection.NewRNG("bob", "a1", q.ID), 1, "x", q, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed and pool must reproduce the identical sample:\n%+v\nvs\n%+v", first, second)
	}
}

func TestSampleSizeAndUniqueness(t *testing.T) {
	q := threeChoiceQuestion()
	var p []question.Rationale
	for i := 0; i < 10; i++ {
		p = append(p, r(fmt.Sprintf("c1-%d", i), 1))
		p = append(p, r(fmt.Sprintf("c3-%d", i), 3))
	}
	sel := selection.ForAlgorithm(selection.AlgorithmSimple)
	choices, err := sel.Choose(selection.NewRNG("carol", "a1", q.ID), 1, "x", q, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, cr := range choices {
		seen := map[string]bool{}
		n := 0
		for _, opt := range cr.Rationales {
			if opt.ID == "" {
				continue
			}
			n++
			if seen[opt.ID] {
				t.Fatalf("duplicate rationale %s offered for choice %d", opt.ID, cr.Choice)
			}
			seen[opt.ID] = true
		}
		if n > 4 {
			t.Fatalf("choice %d has %d sampled rationales; want at most 4", cr.Choice, n)
		}
	}
}

func TestWeightedSecondChoice(t *testing.T) {
	// First choice correct: the second offered choice is drawn by indexing
	// into the concatenated competing-rationale pool, so the choice with
	// nine rationales should be offered far more often than the one with one.
	q := threeChoiceQuestion()
	q.Choices[0].Correct = true
	var p []question.Rationale
	for i := 0; i < 9; i++ {
		p = append(p, r(fmt.Sprintf("c2-%d", i), 2))
	}
	p = append(p, r("c3-0", 3))

	sel := selection.ForAlgorithm(selection.AlgorithmSimple)
	offered2 := 0
	for i := 0; i < 100; i++ {
		choices, err := sel.Choose(selection.NewRNG(fmt.Sprintf("user%d", i), "a1", q.ID), 1, "x", q, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if choices[1].Choice == 2 {
			offered2++
		}
	}
	if offered2 < 60 {
		t.Fatalf("choice with 9x the rationales offered only %d/100 times; weighting looks uniform-over-choices", offered2)
	}
}

func TestSelectionErrorWhenNoCompetingRationales(t *testing.T) {
	q := threeChoiceQuestion()
	q.Choices[0].Correct = true
	_, err := selection.ForAlgorithm(selection.AlgorithmSimple).
		Choose(selection.NewRNG("dave", "a1", q.ID), 1, "x", q, pool(r("r1", 1)))
	if _, ok := err.(*selection.Error); !ok {
		t.Fatalf("expected selection error with an empty competing pool, got %v", err)
	}
}

func TestPreferExpertAndHighlyVoted(t *testing.T) {
	q := threeChoiceQuestion()
	p := pool(
		r("own-1", 1),
		question.Rationale{ID: "expert", Choice: 3, Text: "from an expert", Expert: true},
		question.Rationale{ID: "popular", Choice: 3, Text: "highly voted", Votes: 10},
		question.Rationale{ID: "filler-1", Choice: 3, Text: "meh", Votes: 1},
		question.Rationale{ID: "filler-2", Choice: 3, Text: "meh", Votes: 2},
		question.Rationale{ID: "filler-3", Choice: 3, Text: "meh"},
	)
	sel := selection.ForAlgorithm(selection.AlgorithmPreferExpertAndHighlyVoted)
	for i := 0; i < 20; i++ {
		choices, err := sel.Choose(selection.NewRNG(fmt.Sprintf("user%d", i), "a1", q.ID), 1, "x", q, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := map[string]bool{}
		for _, opt := range choices[1].Rationales {
			got[opt.ID] = true
		}
		if !got["expert"] {
			t.Fatalf("seed %d: expert rationale missing from sample: %v", i, got)
		}
		if !got["popular"] {
			t.Fatalf("seed %d: highly voted rationale missing from sample: %v", i, got)
		}
	}
}

func TestUnknownAlgorithmFallsBackToSimple(t *testing.T) {
	sel := selection.ForAlgorithm("no-such-algorithm")
	if sel.Name() != selection.AlgorithmSimple {
		t.Fatalf("expected fallback to simple, got %s", sel.Name())
	}
}
