package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SQLStore backs the repository with database/sql; works against both the
// sqlite and postgres schemas from internal/db.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	cj, err := json.Marshal(q.Choices)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions
		(id,text,choices_json,answer_style,selection_algorithm,sequential_review,grading_scheme,fake_attributions,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, choices_json=EXCLUDED.choices_json,
			answer_style=EXCLUDED.answer_style, selection_algorithm=EXCLUDED.selection_algorithm,
			sequential_review=EXCLUDED.sequential_review, grading_scheme=EXCLUDED.grading_scheme,
			fake_attributions=EXCLUDED.fake_attributions`,
		q.ID, q.Text, string(cj), string(q.AnswerStyle), q.RationaleSelectionAlgorithm,
		q.SequentialReview, string(q.GradingScheme), q.FakeAttributions, time.Now().Unix())
	return err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,text,choices_json,answer_style,selection_algorithm,sequential_review,grading_scheme,fake_attributions
		FROM questions WHERE id=$1`, id)
	var q Question
	var cjson, style, scheme string
	if err := row.Scan(&q.ID, &q.Text, &cjson, &style, &q.RationaleSelectionAlgorithm,
		&q.SequentialReview, &scheme, &q.FakeAttributions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrQuestionNotFound
		}
		return Question{}, err
	}
	q.AnswerStyle = AnswerStyle(style)
	q.GradingScheme = GradingScheme(scheme)
	if err := json.Unmarshal([]byte(cjson), &q.Choices); err != nil {
		return Question{}, err
	}
	return q, nil
}

const answerColumns = `id,question_id,assignment_id,user_token,first_answer_choice,rationale,
	second_answer_choice,chosen_rationale_id,show_to_others,expert,upvotes,downvotes,created_at`

func scanAnswer(row *sql.Row) (Answer, error) {
	var a Answer
	var second sql.NullInt64
	var chosen sql.NullString
	if err := row.Scan(&a.ID, &a.QuestionID, &a.AssignmentID, &a.UserToken, &a.FirstAnswerChoice,
		&a.Rationale, &second, &chosen, &a.ShowToOthers, &a.Expert, &a.Upvotes, &a.Downvotes, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Answer{}, ErrAnswerNotFound
		}
		return Answer{}, err
	}
	a.SecondAnswerChoice = int(second.Int64)
	a.ChosenRationaleID = chosen.String
	return a, nil
}

func (s *SQLStore) GetAnswer(ctx context.Context, questionID, assignmentID, userToken string) (Answer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+answerColumns+` FROM answers
		WHERE question_id=$1 AND assignment_id=$2 AND user_token=$3 AND user_token<>'' LIMIT 1`,
		questionID, assignmentID, userToken)
	return scanAnswer(row)
}

func (s *SQLStore) GetAnswerByID(ctx context.Context, id string) (Answer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+answerColumns+` FROM answers WHERE id=$1`, id)
	return scanAnswer(row)
}

func (s *SQLStore) SaveAnswer(ctx context.Context, a Answer) (Answer, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().Unix()
	}
	var second sql.NullInt64
	if a.SecondAnswerChoice != 0 {
		second = sql.NullInt64{Int64: int64(a.SecondAnswerChoice), Valid: true}
	}
	var chosen sql.NullString
	if a.ChosenRationaleID != "" {
		chosen = sql.NullString{String: a.ChosenRationaleID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO answers
		(id,question_id,assignment_id,user_token,first_answer_choice,rationale,second_answer_choice,
		 chosen_rationale_id,show_to_others,expert,upvotes,downvotes,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.QuestionID, a.AssignmentID, a.UserToken, a.FirstAnswerChoice, a.Rationale,
		second, chosen, a.ShowToOthers, a.Expert, a.Upvotes, a.Downvotes, a.CreatedAt)
	if err != nil {
		return Answer{}, err
	}
	return a, nil
}

func (s *SQLStore) PublicRationales(ctx context.Context, questionID string) ([]Rationale, error) {
	// Votes = how often the answer was picked as a final rationale.
	rows, err := s.db.QueryContext(ctx, `SELECT a.id, a.first_answer_choice, a.rationale, a.expert,
			(SELECT COUNT(*) FROM answers c WHERE c.chosen_rationale_id = a.id) AS votes
		FROM answers a
		WHERE a.question_id=$1 AND a.show_to_others
		ORDER BY a.created_at, a.id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rationale
	for rows.Next() {
		var r Rationale
		if err := rows.Scan(&r.ID, &r.Choice, &r.Text, &r.Expert, &r.Votes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveVote(ctx context.Context, v AnswerVote) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO answer_votes
		(id,answer_id,assignment_id,user_token,fake_username,fake_country,vote_type,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.AnswerID, v.AssignmentID, v.UserToken, v.FakeUsername, v.FakeCountry, string(v.VoteType), v.CreatedAt)
	return err
}

func (s *SQLStore) IncrementVote(ctx context.Context, answerID string, vote VoteType) error {
	var col string
	switch vote {
	case VoteUp:
		col = "upvotes"
	case VoteDown:
		col = "downvotes"
	default:
		return nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE answers SET `+col+`=`+col+`+1 WHERE id=$1`, answerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAnswerNotFound
	}
	return nil
}

func (s *SQLStore) FakeUsernames(ctx context.Context) ([]string, error) {
	return s.namePool(ctx, "fake_usernames")
}

func (s *SQLStore) FakeCountries(ctx context.Context) ([]string, error) {
	return s.namePool(ctx, "fake_countries")
}

func (s *SQLStore) namePool(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM `+table+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
