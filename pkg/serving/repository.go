package serving

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/healthrisk/pkg/common/logger"
	"github.com/synaptica-ai/healthrisk/pkg/serving/artifacts"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ReleaseActivated = "activated"
	ReleaseRejected  = "rejected"
)

// ArtifactRelease is the audit record of one bundle reload attempt. Request
// payloads and scores are never stored.
type ArtifactRelease struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Version    string         `gorm:"column:version;index" json:"version"`
	Checksum   string         `gorm:"column:checksum" json:"checksum"`
	Trigger    string         `gorm:"column:trigger" json:"trigger"`
	Status     string         `gorm:"column:status" json:"status"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Columns    datatypes.JSON `gorm:"column:columns" json:"columns,omitempty"`
	Categories datatypes.JSON `gorm:"column:categories" json:"categories,omitempty"`
	CreatedAt  time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

// TableName overrides gorm naming.
func (ArtifactRelease) TableName() string {
	return "artifact_releases"
}

// ReleaseStore lists recorded releases.
type ReleaseStore interface {
	Recent(ctx context.Context, limit int) ([]ArtifactRelease, error)
}

// Repository handles artifact release queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ArtifactRelease{})
}

func (r *Repository) RecordRelease(ctx context.Context, release ArtifactRelease) error {
	return r.db.WithContext(ctx).Create(&release).Error
}

// Recent returns the most recent releases up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]ArtifactRelease, error) {
	if limit <= 0 {
		limit = 50
	}
	var releases []ArtifactRelease
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&releases).Error
	return releases, err
}

// Hook records every reload outcome.
func (r *Repository) Hook() artifacts.Hook {
	return func(ctx context.Context, outcome artifacts.Outcome) {
		if err := r.RecordRelease(ctx, releaseFromOutcome(outcome)); err != nil {
			logger.WithError(err).Error("Failed to record artifact release")
		}
	}
}

func releaseFromOutcome(outcome artifacts.Outcome) ArtifactRelease {
	release := ArtifactRelease{
		ID:        uuid.New(),
		Trigger:   outcome.Trigger,
		Status:    ReleaseActivated,
		CreatedAt: outcome.At,
	}
	if outcome.Err != nil {
		release.Status = ReleaseRejected
		release.Error = outcome.Err.Error()
		return release
	}
	info := outcome.Bundle.Info
	release.Version = info.Version
	release.Checksum = info.Checksum
	release.Columns = toJSON(info.Columns)
	categories := make([]string, 0, len(info.Models))
	for _, m := range info.Models {
		categories = append(categories, m.Category)
	}
	release.Categories = toJSON(categories)
	return release
}

func toJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
