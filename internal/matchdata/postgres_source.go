package matchdata

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

type matchRow struct {
	ID              string `gorm:"primaryKey"`
	Slug            string `gorm:"uniqueIndex"`
	Name            string
	Status          string
	CurrentQuestion int
	RemainingTime   int
}

func (matchRow) TableName() string { return "matches" }

type questionRow struct {
	ID            string `gorm:"primaryKey"`
	MatchID       string `gorm:"index"`
	QuestionOrder int
	Content       string
	Type          string
	Options       []string `gorm:"serializer:json"`
	Media         string
	DefaultTime   int
}

func (questionRow) TableName() string { return "match_questions" }

type contestantRow struct {
	MatchID            string `gorm:"primaryKey"`
	ContestantID       string `gorm:"primaryKey"`
	FullName           string
	RegistrationNumber string
	Status             string
	Rank               int
	Position           int
}

func (contestantRow) TableName() string { return "match_contestants" }

type rescueRow struct {
	ID            string `gorm:"primaryKey"`
	MatchID       string `gorm:"index"`
	RescueType    string
	Status        string
	QuestionOrder *int
	Position      int
}

func (rescueRow) TableName() string { return "rescues" }

// PostgresSource reads match data straight from the system-of-record
// database.
type PostgresSource struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresSource(dsn string, logger *zap.Logger) (*PostgresSource, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, matcherr.Transport("open match database: %v", err)
	}
	return NewPostgresSourceFromDB(db, logger), nil
}

func NewPostgresSourceFromDB(db *gorm.DB, logger *zap.Logger) *PostgresSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{db: db, logger: logger}
}

// Migrate creates the tables the source reads. Production schemas are owned
// by the Match Data API; this is for local runs and integration tests.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&matchRow{}, &questionRow{}, &contestantRow{}, &rescueRow{})
}

func (s *PostgresSource) LoadMatch(ctx context.Context, ref MatchRef) (*Bootstrap, error) {
	db := s.db.WithContext(ctx)

	var m matchRow
	q := db.Model(&matchRow{})
	switch {
	case ref.MatchID != "":
		q = q.Where("id = ?", ref.MatchID)
	case ref.Slug != "":
		q = q.Where("slug = ?", ref.Slug)
	default:
		return nil, matcherr.Validation("matchSlug or matchId is required")
	}
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, matcherr.NotFound("match %q", ref.Key())
		}
		return nil, matcherr.Transport("load match %q: %v", ref.Key(), err)
	}

	var questions []questionRow
	if err := db.Where("match_id = ?", m.ID).Order("question_order").Find(&questions).Error; err != nil {
		return nil, matcherr.Transport("load questions for %q: %v", m.ID, err)
	}
	var contestants []contestantRow
	if err := db.Where("match_id = ?", m.ID).Order("position").Find(&contestants).Error; err != nil {
		return nil, matcherr.Transport("load contestants for %q: %v", m.ID, err)
	}
	var rescues []rescueRow
	if err := db.Where("match_id = ?", m.ID).Order("position").Find(&rescues).Error; err != nil {
		return nil, matcherr.Transport("load rescues for %q: %v", m.ID, err)
	}

	b := &Bootstrap{
		Match: Match{
			ID:              m.ID,
			Slug:            m.Slug,
			Name:            m.Name,
			Status:          m.Status,
			CurrentQuestion: m.CurrentQuestion,
			RemainingTime:   m.RemainingTime,
		},
	}
	for _, q := range questions {
		b.Questions = append(b.Questions, engine.Question{
			ID:                 q.ID,
			Order:              q.QuestionOrder,
			Content:            q.Content,
			Type:               q.Type,
			Options:            q.Options,
			Media:              q.Media,
			DefaultTimeSeconds: q.DefaultTime,
		})
	}
	for _, c := range contestants {
		b.Contestants = append(b.Contestants, Contestant{
			ID:                 c.ContestantID,
			FullName:           c.FullName,
			RegistrationNumber: c.RegistrationNumber,
			Status:             c.Status,
		})
	}
	for _, r := range rescues {
		b.Rescues = append(b.Rescues, Rescue{
			ID:            r.ID,
			RescueType:    r.RescueType,
			Status:        r.Status,
			QuestionOrder: r.QuestionOrder,
		})
	}
	return b, nil
}

// SaveResults writes every contestant's final status in one transaction.
func (s *PostgresSource) SaveResults(ctx context.Context, matchID string, results []ContestantResult) error {
	if matchID == "" {
		return matcherr.Validation("matchId is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range results {
			res := tx.Model(&contestantRow{}).
				Where("match_id = ? AND contestant_id = ?", matchID, r.ContestantID).
				Updates(map[string]any{"status": string(r.Status), "rank": r.Rank})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return matcherr.NotFound("contestant %q in match %q", r.ContestantID, matchID)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, matcherr.ErrNotFound) {
			return err
		}
		return matcherr.Transport("save results for %q: %v", matchID, err)
	}
	s.logger.Info("saved results", zap.String("match_id", matchID), zap.Int("contestants", len(results)))
	return nil
}

func (s *PostgresSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Source = (*PostgresSource)(nil)
