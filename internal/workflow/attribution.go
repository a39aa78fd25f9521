package workflow

import (
	"context"
	"fmt"
	"html"
	"math/rand"

	"github.com/mind-engage/peerinst/internal/question"
	"github.com/mind-engage/peerinst/internal/selection"
)

// anonymize overlays fake username/country pairs onto the sampled rationales
// and records the id -> attribution mapping so later votes can be attributed
// consistently for the remainder of the attempt.
//
// Exactly one of the two escape paths always runs: with attributions the
// rationale text is escaped and wrapped with the attribution appended;
// without them (disabled, or a name pool is empty) the text is plain
// HTML-escaped. The stick-with-own sentinel is left untouched on both paths.
func anonymize(ctx context.Context, store question.Store, rng *rand.Rand, choices []selection.ChoiceRationales, enabled bool) (map[string]Attribution, error) {
	usernames, err := store.FakeUsernames(ctx)
	if err != nil {
		return nil, err
	}
	countries, err := store.FakeCountries(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled || len(usernames) == 0 || len(countries) == 0 {
		escapeRationales(choices)
		return nil, nil
	}

	attributions := map[string]Attribution{}
	for ci := range choices {
		for ri, opt := range choices[ci].Rationales {
			if opt.ID == "" {
				continue
			}
			attr := Attribution{
				Username: usernames[rng.Intn(len(usernames))],
				Country:  countries[rng.Intn(len(countries))],
			}
			attributions[opt.ID] = attr
			choices[ci].Rationales[ri].Text = fmt.Sprintf("<q>%s</q> (%s, %s)",
				html.EscapeString(opt.Text), attr.Username, attr.Country)
		}
	}
	return attributions, nil
}

func escapeRationales(choices []selection.ChoiceRationales) {
	for ci := range choices {
		for ri, opt := range choices[ci].Rationales {
			if opt.ID == "" {
				continue
			}
			choices[ci].Rationales[ri].Text = html.EscapeString(opt.Text)
		}
	}
}
