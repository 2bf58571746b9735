package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ateliercolor/presstrack/internal/store/model"
)

type Job interface {
	List(ctx context.Context, filter *JobQueryFilter) (model.JobList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, expectedVersion int64, update JobUpdate, entry *model.Transition) (*model.Job, error)
	History(ctx context.Context, id uuid.UUID) ([]model.Transition, error)
}

// JobUpdate carries the accepted workflow result written back to the job row.
type JobUpdate struct {
	Status      string
	StatusKnown bool
	Version     int64
	UpdatedAt   time.Time
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter) (model.JobList, error) {
	var jobs model.JobList
	tx := s.getDB(ctx)
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if result := tx.Order("created_at").Find(&jobs); result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job := model.Job{}
	result := s.getDB(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &job, nil
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &job, nil
}

// ApplyTransition writes an accepted workflow result using a compare-and-swap
// on the job version. A concurrent writer that bumped the version first makes
// this call fail with ErrStaleWrite; nothing is written in that case.
func (s *JobStore) ApplyTransition(ctx context.Context, id uuid.UUID, expectedVersion int64, update JobUpdate, entry *model.Transition) (*model.Job, error) {
	tx := s.getDB(ctx)

	result := tx.Model(&model.Job{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"status":       update.Status,
			"status_known": update.StatusKnown,
			"version":      update.Version,
			"updated_at":   update.UpdatedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&model.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrRecordNotFound
		}
		return nil, ErrStaleWrite
	}

	if entry != nil {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.JobID = id
		if err := tx.Create(entry).Error; err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, id)
}

func (s *JobStore) History(ctx context.Context, id uuid.UUID) ([]model.Transition, error) {
	var entries []model.Transition
	result := s.getDB(ctx).
		Where("job_id = ?", id).
		Order("seq ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}
