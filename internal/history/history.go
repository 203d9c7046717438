// Package history journals pipeline runs to sqlite.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/legosorter/internal/stages"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrRunNotFound = errors.New("history: run not found")

// Run maps to the runs table.
type Run struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	StartedAt  time.Time  `gorm:"index" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Host       string     `json:"host"`
	Stages     []StageRun `gorm:"constraint:OnDelete:CASCADE" json:"stages,omitempty"`
}

// StageRun maps to the stage_runs table.
type StageRun struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	RunID      uint   `gorm:"index" json:"run_id"`
	StageID    string `json:"stage_id"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Store is a gorm backed run journal.
type Store struct {
	db *gorm.DB
}

var _ stages.Journal = (*Store)(nil)

// Open opens or creates the sqlite database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Run{}, &StageRun{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin inserts a running row and returns its id.
func (s *Store) Begin(ctx context.Context, host string, started time.Time) (uint, error) {
	run := Run{StartedAt: started, Status: "running", Host: host}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, fmt.Errorf("history: begin run: %w", err)
	}
	return run.ID, nil
}

// RecordStage appends one stage outcome to run runID.
func (s *Store) RecordStage(ctx context.Context, runID uint, res stages.StageResult) error {
	row := StageRun{
		RunID:      runID,
		StageID:    res.ID,
		Status:     string(res.Status),
		Attempts:   res.Attempts,
		DurationMS: res.Duration.Milliseconds(),
		Error:      res.Error,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("history: record stage %s: %w", res.ID, err)
	}
	return nil
}

// Finish stamps the final status on run runID.
func (s *Store) Finish(ctx context.Context, runID uint, status string, finished time.Time) error {
	result := s.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", runID).
		Updates(map[string]any{"status": status, "finished_at": finished})
	if result.Error != nil {
		return fmt.Errorf("history: finish run %d: %w", runID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

// Get loads one run with its stages.
func (s *Store) Get(ctx context.Context, runID uint) (Run, error) {
	var run Run
	result := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", runID).
		Limit(1).
		Find(&run)
	if result.Error != nil {
		return Run{}, fmt.Errorf("history: get run %d: %w", runID, result.Error)
	}
	if result.RowsAffected == 0 {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first, with their stages.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("id desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("history: recent runs: %w", err)
	}
	return runs, nil
}
