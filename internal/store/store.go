package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/ateliercolor/presstrack/internal/store/model"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	InitialMigration() error
	Statistics(ctx context.Context) (model.JobStats, error)
	Close() error
}

type DataStore struct {
	job Job
	db  *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		job: NewJobStore(db),
		db:  db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Job{}, &model.Transition{})
}

func (s *DataStore) Statistics(ctx context.Context) (model.JobStats, error) {
	var rows []struct {
		Status string
		Count  int
	}
	result := s.db.WithContext(ctx).
		Model(&model.Job{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows)
	if result.Error != nil {
		return model.JobStats{}, result.Error
	}

	stats := model.JobStats{ByStatus: make(map[string]int, len(rows))}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
