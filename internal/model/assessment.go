package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const GAD7QuestionCount = 7

type GAD7Result struct {
	ID            int64       `db:"id" json:"id"`
	UserID        int64       `db:"user_id" json:"userId"`
	Question1     int         `db:"question1" json:"question1"`
	Question2     int         `db:"question2" json:"question2"`
	Question3     int         `db:"question3" json:"question3"`
	Question4     int         `db:"question4" json:"question4"`
	Question5     int         `db:"question5" json:"question5"`
	Question6     int         `db:"question6" json:"question6"`
	Question7     int         `db:"question7" json:"question7"`
	Reflection    string      `db:"reflection" json:"question8"`
	TotalScore    int         `db:"total_score" json:"totalScore"`
	SeverityLevel Severity    `db:"severity_level" json:"severityLevel"`
	TherapyTypes  StringList  `db:"therapy_types" json:"recommended_therapy"`
	SessionCount  int         `db:"session_count" json:"total_sessions"`
	Explanation   string      `db:"explanation" json:"explanation"`
	SessionPlan   SessionPlan `db:"session_plan" json:"session_plan"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

func (r *GAD7Result) Answers() [GAD7QuestionCount]int {
	return [GAD7QuestionCount]int{
		r.Question1, r.Question2, r.Question3, r.Question4, r.Question5, r.Question6, r.Question7,
	}
}

type CreateGAD7Params struct {
	UserID         int64
	Answers        [GAD7QuestionCount]int
	Reflection     string
	TotalScore     int
	SeverityLevel  Severity
	Recommendation Recommendation
}

// Recommendation is the validated output of the therapy planner.
type Recommendation struct {
	TherapyTypes StringList  `json:"therapy_types"`
	SessionCount int         `json:"session_count"`
	Explanation  string      `json:"explanation"`
	SessionPlan  SessionPlan `json:"session_plan"`
}

type PlannedSession struct {
	SessionNumber int        `json:"session_number"`
	Topic         string     `json:"session_topic"`
	Goals         StringList `json:"session_goals"`
}

// StringList is a []string stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return marshalJSON([]string(l))
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// SessionPlan is the planner's per-session outline stored as a JSON column.
type SessionPlan []PlannedSession

func (p SessionPlan) Value() (driver.Value, error) {
	return marshalJSON([]PlannedSession(p))
}

func (p *SessionPlan) Scan(src any) error {
	return scanJSON(src, p)
}

func marshalJSON[T any](items []T) (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func scanJSON(src any, dest any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

// Validate checks planner output against the allowed therapy vocabulary and
// a plan numbered 1..SessionCount.
func (r *Recommendation) Validate(maxSessions int) error {
	if len(r.TherapyTypes) == 0 || len(r.TherapyTypes) > 2 {
		return fmt.Errorf("expected 1 or 2 therapy types, got %d", len(r.TherapyTypes))
	}
	seen := make(map[string]bool, len(r.TherapyTypes))
	for _, t := range r.TherapyTypes {
		if !isTherapyType(t) {
			return fmt.Errorf("unknown therapy type %q", t)
		}
		if seen[t] {
			return fmt.Errorf("duplicate therapy type %q", t)
		}
		seen[t] = true
	}

	if r.SessionCount < 1 || r.SessionCount > maxSessions {
		return fmt.Errorf("session_count %d outside 1..%d", r.SessionCount, maxSessions)
	}
	if strings.TrimSpace(r.Explanation) == "" {
		return fmt.Errorf("explanation is empty")
	}
	if len(r.SessionPlan) != r.SessionCount {
		return fmt.Errorf("session_plan has %d entries, want %d", len(r.SessionPlan), r.SessionCount)
	}

	for i, s := range r.SessionPlan {
		if s.SessionNumber != i+1 {
			return fmt.Errorf("session_plan[%d] is numbered %d, want %d", i, s.SessionNumber, i+1)
		}
		if strings.TrimSpace(s.Topic) == "" {
			return fmt.Errorf("session %d has no topic", s.SessionNumber)
		}
		if len(s.Goals) == 0 {
			return fmt.Errorf("session %d has no goals", s.SessionNumber)
		}
		for _, g := range s.Goals {
			if strings.TrimSpace(g) == "" {
				return fmt.Errorf("session %d has an empty goal", s.SessionNumber)
			}
		}
	}
	return nil
}

func isTherapyType(t string) bool {
	for _, v := range TherapyTypes {
		if v == t {
			return true
		}
	}
	return false
}
