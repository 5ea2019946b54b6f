package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrIdentityNotFound indicates no enrolled embedding exists for the
// requested student.
var ErrIdentityNotFound = errors.New("identity not found")

// StudentProfile associates one student with at most one face embedding.
// The embedding column is a typed numeric vector; stored values are never
// round-tripped through strings.
type StudentProfile struct {
	ID        uint            `gorm:"primaryKey"`
	StudentID string          `gorm:"column:student_id;uniqueIndex;size:64"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector"`
	Model     string          `gorm:"column:model;size:32"`
	Dim       int             `gorm:"column:dim"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (StudentProfile) TableName() string {
	return "student_profiles"
}

// ProfileRepository provides persistence APIs for enrolled face embeddings.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository instance.
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// AutoMigrate ensures the pgvector extension and schema are available.
func (r *ProfileRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).AutoMigrate(&StudentProfile{})
}

// UpsertEmbedding stores the embedding for a student, overwriting any prior
// value. Re-enrolling replaces, never appends.
func (r *ProfileRepository) UpsertEmbedding(ctx context.Context, studentID, model string, embedding []float32) error {
	profile := StudentProfile{
		StudentID: studentID,
		Embedding: pgvector.NewVector(embedding),
		Model:     model,
		Dim:       len(embedding),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "model", "dim", "updated_at"}),
	}).Create(&profile).Error
}

// FindEmbedding loads the stored embedding for a student. A missing row or
// an empty stored vector both surface as ErrIdentityNotFound.
func (r *ProfileRepository) FindEmbedding(ctx context.Context, studentID string) ([]float32, error) {
	var profile StudentProfile
	if err := r.db.WithContext(ctx).First(&profile, "student_id = ?", studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	embedding := profile.Embedding.Slice()
	if len(embedding) == 0 {
		return nil, ErrIdentityNotFound
	}
	return embedding, nil
}
