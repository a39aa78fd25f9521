package question

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu        sync.RWMutex
	questions map[string]Question
	answers   map[string]Answer
	answerIDs []string // insertion order, keeps PublicRationales stable
	votes     []AnswerVote
	usernames []string
	countries []string
}

// NewInMemoryStore returns a Store for offline use and tests.
func NewInMemoryStore() Store {
	return &memoryStore{
		questions: map[string]Question{},
		answers:   map[string]Answer{},
	}
}

// SeedNamePools installs the fake-attribution name pools on an in-memory store.
func SeedNamePools(s Store, usernames, countries []string) {
	m, ok := s.(*memoryStore)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usernames = append([]string(nil), usernames...)
	m.countries = append([]string(nil), countries...)
}

func (m *memoryStore) PutQuestion(_ context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrQuestionNotFound
	}
	return q, nil
}

func (m *memoryStore) GetAnswer(_ context.Context, questionID, assignmentID, userToken string) (Answer, error) {
	if userToken == "" {
		// Seed rows share the empty token and are never "the user's answer".
		return Answer{}, ErrAnswerNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.answerIDs {
		a := m.answers[id]
		if a.QuestionID == questionID && a.AssignmentID == assignmentID && a.UserToken == userToken {
			return a, nil
		}
	}
	return Answer{}, ErrAnswerNotFound
}

func (m *memoryStore) GetAnswerByID(_ context.Context, id string) (Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.answers[id]
	if !ok {
		return Answer{}, ErrAnswerNotFound
	}
	return a, nil
}

func (m *memoryStore) SaveAnswer(_ context.Context, a Answer) (Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().Unix()
	}
	if _, exists := m.answers[a.ID]; !exists {
		m.answerIDs = append(m.answerIDs, a.ID)
	}
	m.answers[a.ID] = a
	return a, nil
}

// DeleteAnswer removes an answer, simulating staff deleting a rationale
// mid-session. Test helper; the workflow itself never deletes.
func DeleteAnswer(s Store, id string) {
	m, ok := s.(*memoryStore)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.answers, id)
	for i, aid := range m.answerIDs {
		if aid == id {
			m.answerIDs = append(m.answerIDs[:i], m.answerIDs[i+1:]...)
			break
		}
	}
}

func (m *memoryStore) PublicRationales(_ context.Context, questionID string) ([]Rationale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	finalChoices := map[string]int{}
	for _, id := range m.answerIDs {
		if cr := m.answers[id].ChosenRationaleID; cr != "" {
			finalChoices[cr]++
		}
	}
	var out []Rationale
	for _, id := range m.answerIDs {
		a := m.answers[id]
		if a.QuestionID != questionID || !a.ShowToOthers {
			continue
		}
		out = append(out, Rationale{
			ID:     a.ID,
			Choice: a.FirstAnswerChoice,
			Text:   a.Rationale,
			Expert: a.Expert,
			Votes:  finalChoices[a.ID],
		})
	}
	return out, nil
}

func (m *memoryStore) SaveVote(_ context.Context, v AnswerVote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().Unix()
	}
	m.votes = append(m.votes, v)
	return nil
}

// Votes returns all recorded votes of an in-memory store. Test helper.
func Votes(s Store) []AnswerVote {
	m, ok := s.(*memoryStore)
	if !ok {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AnswerVote(nil), m.votes...)
}

func (m *memoryStore) IncrementVote(_ context.Context, answerID string, vote VoteType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[answerID]
	if !ok {
		return ErrAnswerNotFound
	}
	switch vote {
	case VoteUp:
		a.Upvotes++
	case VoteDown:
		a.Downvotes++
	}
	m.answers[answerID] = a
	return nil
}

func (m *memoryStore) FakeUsernames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.usernames...), nil
}

func (m *memoryStore) FakeCountries(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.countries...), nil
}
