package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AttendanceLog represents one persisted verification outcome.
type AttendanceLog struct {
	ID        uint      `gorm:"primaryKey"`
	RequestID string    `gorm:"column:request_id;uniqueIndex;size:64"`
	StudentID string    `gorm:"column:student_id;index;size:64"`
	Matched   bool      `gorm:"column:matched"`
	Distance  float64   `gorm:"column:distance"`
	Details   string    `gorm:"column:details;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AttendanceLog) TableName() string {
	return "attendance_logs"
}

// MetricsAggregation holds raw aggregates over attendance logs.
type MetricsAggregation struct {
	TotalCount      int64
	MatchedCount    int64
	AverageDistance float64
}

// AttendanceRepository provides persistence APIs for verification outcomes.
type AttendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository creates a new repository instance.
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// AutoMigrate ensures the schema is available.
func (r *AttendanceRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AttendanceLog{})
}

// SaveLog persists a verification outcome.
func (r *AttendanceRepository) SaveLog(ctx context.Context, log *AttendanceLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByRequestIDAndStudent retrieves a verification outcome matching the
// request and the claimed identity.
func (r *AttendanceRepository) FindByRequestIDAndStudent(ctx context.Context, requestID, studentID string) (*AttendanceLog, error) {
	var log AttendanceLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ? AND student_id = ?", requestID, studentID).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics computes totals over all persisted verification outcomes.
func (r *AttendanceRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	row := r.db.WithContext(ctx).
		Model(&AttendanceLog{}).
		Select("COUNT(*) AS total_count, COUNT(*) FILTER (WHERE matched) AS matched_count, COALESCE(AVG(distance), 0) AS average_distance").
		Row()
	if err := row.Scan(&agg.TotalCount, &agg.MatchedCount, &agg.AverageDistance); err != nil {
		return nil, err
	}
	return &agg, nil
}
