package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"apiscribe/internal/pipeline"
)

// Run is one recorded pipeline run.
type Run struct {
	ID          string `gorm:"primaryKey;size:36"`
	SourcePath  string `gorm:"size:1024;not null;index"`
	TestPath    string `gorm:"size:1024"`
	DocsPath    string `gorm:"size:1024"`
	Provider    string `gorm:"size:32"`
	Model       string `gorm:"size:128"`
	State       string `gorm:"size:16;not null"`
	FailedStage string `gorm:"size:16"`
	ErrorKind   string `gorm:"size:32"`
	Error       string `gorm:"type:text"`
	Endpoints   int
	Schemas     int
	Verified    bool
	TestsPassed bool
	ExitCode    int
	Passed      int
	Failed      int
	DurationMS  int64
	CreatedAt   time.Time `gorm:"index"`
}

// NewRun converts an outcome into a record.
func NewRun(o *pipeline.Outcome, provider, model string) Run {
	r := Run{
		ID:         o.RunID,
		SourcePath: o.Request.SourcePath,
		TestPath:   o.Request.TestPath,
		DocsPath:   o.Request.DocsPath,
		Provider:   provider,
		Model:      model,
		State:      o.State.String(),
		DurationMS: o.Duration().Milliseconds(),
		CreatedAt:  o.StartedAt,
	}
	if o.Failed() {
		r.FailedStage = o.FailedStage.String()
		r.ErrorKind = string(o.Kind)
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
	}
	if o.Analysis != nil {
		r.Endpoints = len(o.Analysis.Endpoints)
		r.Schemas = len(o.Analysis.Schemas)
	}
	if o.Report != nil {
		r.Verified = true
		r.TestsPassed = o.Report.Succeeded
		r.ExitCode = o.Report.ExitCode
		if s := o.Report.Summary; s != nil {
			r.Passed = s.Passed
			r.Failed = s.Failed + s.Errors
		}
	}
	return r
}

// Repository reads and writes run records.
type Repository interface {
	Record(run Run) error
	List(limit int) ([]Run, error)
	Get(id string) (*Run, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository wraps db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Record(run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}
	return r.db.Create(&run).Error
}

// List returns the newest runs first. A limit of zero or less returns all.
func (r *repository) List(limit int) ([]Run, error) {
	var runs []Run
	q := r.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Get returns nil without error when no run has id.
func (r *repository) Get(id string) (*Run, error) {
	var run Run
	res := r.db.Where("id = ?", id).Take(&run)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &run, nil
}
