package matchdata

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

// Integration test; needs a scratch database.
func TestPostgresSource(t *testing.T) {
	dsn := os.Getenv("MATCHHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MATCHHUB_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	src, err := NewPostgresSource(dsn, nil)
	require.NoError(t, err)
	defer src.Close()
	require.NoError(t, src.Migrate(ctx))

	matchID := uuid.NewString()
	slug := "it-" + matchID[:8]
	one := 1
	require.NoError(t, src.db.Create(&matchRow{ID: matchID, Slug: slug, Name: "Integration", Status: "upcoming"}).Error)
	require.NoError(t, src.db.Create(&[]questionRow{
		{ID: uuid.NewString(), MatchID: matchID, QuestionOrder: 2, Content: "second", DefaultTime: 30},
		{ID: uuid.NewString(), MatchID: matchID, QuestionOrder: 1, Content: "first", Options: []string{"A", "B"}, DefaultTime: 15},
	}).Error)
	require.NoError(t, src.db.Create(&[]contestantRow{
		{MatchID: matchID, ContestantID: "c1", FullName: "Ana", Status: "not_started", Position: 1},
		{MatchID: matchID, ContestantID: "c2", FullName: "Binh", Status: "banned", Position: 2},
	}).Error)
	require.NoError(t, src.db.Create(&rescueRow{ID: uuid.NewString(), MatchID: matchID, RescueType: "audience", Status: "notUsed", QuestionOrder: &one}).Error)

	b, err := src.LoadMatch(ctx, MatchRef{Slug: slug})
	require.NoError(t, err)
	assert.Equal(t, matchID, b.Match.ID)
	require.Len(t, b.Questions, 2)
	assert.Equal(t, "first", b.Questions[0].Content)
	assert.Equal(t, []string{"A", "B"}, b.Questions[0].Options)
	require.Len(t, b.Contestants, 2)
	assert.Equal(t, "c1", b.Contestants[0].ID)
	require.Len(t, b.Rescues, 1)

	err = src.SaveResults(ctx, matchID, []ContestantResult{
		{ContestantID: "c1", Status: engine.StatusCompleted, Rank: 1},
		{ContestantID: "c2", Status: engine.StatusBanned, Rank: 2},
	})
	require.NoError(t, err)

	var row contestantRow
	require.NoError(t, src.db.Where("match_id = ? AND contestant_id = ?", matchID, "c1").First(&row).Error)
	assert.Equal(t, "completed", row.Status)
	assert.Equal(t, 1, row.Rank)

	err = src.SaveResults(ctx, matchID, []ContestantResult{{ContestantID: "ghost", Status: engine.StatusCompleted}})
	assert.ErrorIs(t, err, matcherr.ErrNotFound)

	_, err = src.LoadMatch(ctx, MatchRef{Slug: "missing-" + matchID})
	assert.ErrorIs(t, err, matcherr.ErrNotFound)
}
