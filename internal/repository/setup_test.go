package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/model"
)

// setupTestDB connects to TEST_DATABASE_URL and recreates the schema. Tests
// are skipped when the variable is unset.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("testdata/schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func createTestUser(t *testing.T, db *database.DB, email string) *model.User {
	t.Helper()
	user, err := NewUserRepository(db.DB).Create(context.Background(), model.CreateUserParams{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return user
}

func testPlan() model.Recommendation {
	return model.Recommendation{
		TherapyTypes: model.StringList{"CBT", "Mindfulness"},
		SessionCount: 3,
		Explanation:  "Worry is frequent but manageable.",
		SessionPlan: model.SessionPlan{
			{SessionNumber: 1, Topic: "Noticing worry", Goals: model.StringList{"name triggers"}},
			{SessionNumber: 2, Topic: "Breathing", Goals: model.StringList{"box breathing"}},
			{SessionNumber: 3, Topic: "Planning ahead", Goals: model.StringList{"worry time", "review"}},
		},
	}
}

func createTestGAD7(t *testing.T, db *database.DB, userID int64) *model.GAD7Result {
	t.Helper()
	result, err := NewGAD7Repository(db.DB).Create(context.Background(), model.CreateGAD7Params{
		UserID:         userID,
		Answers:        [model.GAD7QuestionCount]int{1, 1, 2, 0, 1, 2, 1},
		Reflection:     "I keep replaying conversations at night.",
		TotalScore:     8,
		SeverityLevel:  model.SeverityMild,
		Recommendation: testPlan(),
	})
	require.NoError(t, err)
	return result
}

var testTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
