package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/face-attend/internal/config"
	"github.com/example/face-attend/internal/extractor"
	"github.com/example/face-attend/internal/facematch"
	"github.com/example/face-attend/internal/imaging"
	"github.com/example/face-attend/internal/logging"
	"github.com/example/face-attend/internal/repository"
)

// ErrTimeout indicates the extractor or the store did not answer within
// its configured bound. Distinct from extraction and store failures so the
// boundary can report it as such.
var ErrTimeout = errors.New("external call timed out")

const outcomeCacheTTL = 5 * time.Minute

// ProfileRepository defines the embedding persistence operations needed by
// the flows.
type ProfileRepository interface {
	UpsertEmbedding(ctx context.Context, studentID, model string, embedding []float32) error
	FindEmbedding(ctx context.Context, studentID string) ([]float32, error)
}

// AttendanceRepository defines the audit log operations needed by the flows.
type AttendanceRepository interface {
	SaveLog(ctx context.Context, log *repository.AttendanceLog) error
	FindByRequestIDAndStudent(ctx context.Context, requestID, studentID string) (*repository.AttendanceLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// ImageFetcher downloads a reference image for one-off verification.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Outcome is a verification decision together with the identity it was
// computed against. Never persisted beyond the audit log; always returned
// synchronously.
type Outcome struct {
	RequestID string
	StudentID string
	Matched   bool
	Distance  float64
}

// FaceUseCase encapsulates the enrollment and verification flows.
type FaceUseCase struct {
	profiles         ProfileRepository
	attendance       AttendanceRepository
	cache            Cache
	extractor        extractor.Client
	fetcher          ImageFetcher
	logger           *zap.Logger
	model            string
	threshold        float64
	extractorTimeout time.Duration
	storeTimeout     time.Duration
}

type cachedOutcome struct {
	RequestID string    `json:"request_id"`
	StudentID string    `json:"student_id"`
	Matched   bool      `json:"matched"`
	Distance  float64   `json:"distance"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFaceUseCase constructs a new use case instance. Threshold, model name
// and call timeouts come from startup configuration, never from literals
// at the comparison site.
func NewFaceUseCase(
	profiles ProfileRepository,
	attendance AttendanceRepository,
	cache Cache,
	ext extractor.Client,
	fetcher ImageFetcher,
	logger *zap.Logger,
	cfg *config.Config,
) *FaceUseCase {
	return &FaceUseCase{
		profiles:         profiles,
		attendance:       attendance,
		cache:            cache,
		extractor:        ext,
		fetcher:          fetcher,
		logger:           logger.Named("face_usecase"),
		model:            cfg.Extractor.Model,
		threshold:        cfg.Match.Threshold,
		extractorTimeout: cfg.Extractor.Timeout,
		storeTimeout:     cfg.Database.Timeout,
	}
}

// Enroll computes the face embedding for the image and stores it under
// studentID, overwriting any prior value. Re-enrolling replaces, never
// appends.
func (uc *FaceUseCase) Enroll(ctx context.Context, studentID string, image []byte) error {
	opLogger := logging.WithStudent(uc.logger, studentID)

	normalized, err := imaging.Normalize(image)
	if err != nil {
		opLogger.Warn("enrollment image rejected", zap.Error(err))
		return err
	}

	embedding, err := uc.extract(ctx, normalized)
	if err != nil {
		opLogger.Error("embedding extraction failed", zap.Error(err))
		return err
	}

	if err := uc.withStoreTimeout(ctx, "usecase.upsert_embedding", func(ctx context.Context) error {
		return uc.profiles.UpsertEmbedding(ctx, studentID, uc.model, embedding)
	}); err != nil {
		opLogger.Error("failed to persist embedding", zap.Error(err))
		return err
	}

	opLogger.Info("face enrolled", zap.Int("dim", len(embedding)))
	return nil
}

// Verify computes a probe embedding for the image, loads the stored
// reference for studentID, and decides match/no-match against the
// configured threshold. A non-match is a normal outcome, not an error.
func (uc *FaceUseCase) Verify(ctx context.Context, studentID string, image []byte) (*Outcome, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithStudent(logging.WithOperation(uc.logger, "usecase.verify", requestID), studentID)

	normalized, err := imaging.Normalize(image)
	if err != nil {
		opLogger.Warn("verification image rejected", zap.Error(err))
		return nil, err
	}

	probe, err := uc.extract(ctx, normalized)
	if err != nil {
		opLogger.Error("probe extraction failed", zap.Error(err))
		return nil, err
	}

	var reference []float32
	if err := uc.withStoreTimeout(ctx, "usecase.find_embedding", func(ctx context.Context) error {
		var findErr error
		reference, findErr = uc.profiles.FindEmbedding(ctx, studentID)
		return findErr
	}); err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			opLogger.Warn("no enrolled face for student")
			return nil, fmt.Errorf("%w: %s", repository.ErrIdentityNotFound, studentID)
		}
		opLogger.Error("failed to load stored embedding", zap.Error(err))
		return nil, err
	}

	decision, err := facematch.Decide(probe, reference, uc.threshold)
	if err != nil {
		opLogger.Error("embedding comparison failed", zap.Error(err))
		return nil, err
	}

	outcome := &Outcome{
		RequestID: requestID,
		StudentID: studentID,
		Matched:   decision.Matched,
		Distance:  decision.Distance,
	}
	uc.recordOutcome(ctx, opLogger, outcome)

	return outcome, nil
}

// VerifyAgainstReference compares the submitted image directly against the
// image at referenceURL, without touching the store. This entry point
// fails closed: any failure in the pipeline degrades to a non-match
// instead of an error.
func (uc *FaceUseCase) VerifyAgainstReference(ctx context.Context, image []byte, referenceURL string) Outcome {
	opLogger := uc.logger.With(zap.String("operation", "usecase.verify_reference"))

	outcome, err := uc.compareToReference(ctx, image, referenceURL)
	if err != nil {
		opLogger.Warn("reference verification degraded to non-match", zap.Error(err))
		return Outcome{Matched: false, Distance: -1}
	}
	return outcome
}

func (uc *FaceUseCase) compareToReference(ctx context.Context, image []byte, referenceURL string) (Outcome, error) {
	normalized, err := imaging.Normalize(image)
	if err != nil {
		return Outcome{}, err
	}
	probe, err := uc.extract(ctx, normalized)
	if err != nil {
		return Outcome{}, err
	}

	refImage, err := uc.fetcher.FetchImage(ctx, referenceURL)
	if err != nil {
		return Outcome{}, err
	}
	refNormalized, err := imaging.Normalize(refImage)
	if err != nil {
		return Outcome{}, err
	}
	reference, err := uc.extract(ctx, refNormalized)
	if err != nil {
		return Outcome{}, err
	}

	decision, err := facematch.Decide(probe, reference, uc.threshold)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Matched: decision.Matched, Distance: decision.Distance}, nil
}

// GetResult retrieves a verification outcome by request id, preferring the
// cache and falling back to the audit log.
func (uc *FaceUseCase) GetResult(ctx context.Context, studentID, requestID string) (*repository.AttendanceLog, error) {
	cacheKey := outcomeCacheKey(requestID)
	if cached, err := uc.cache.Get(ctx, cacheKey); err == nil {
		var payload cachedOutcome
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached outcome", zap.Error(err))
		} else {
			log := &repository.AttendanceLog{
				RequestID: requestID,
				StudentID: studentID,
				Matched:   payload.Matched,
				Distance:  payload.Distance,
				Details:   payload.Details,
				CreatedAt: payload.CreatedAt,
			}
			if payload.StudentID != "" {
				log.StudentID = payload.StudentID
			}
			if payload.RequestID != "" {
				log.RequestID = payload.RequestID
			}
			return log, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	var log *repository.AttendanceLog
	err := uc.withStoreTimeout(ctx, "usecase.find_log", func(ctx context.Context) error {
		var findErr error
		log, findErr = uc.attendance.FindByRequestIDAndStudent(ctx, requestID, studentID)
		return findErr
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

// recordOutcome writes the audit log and caches the outcome. The cache is
// best effort: the decision already happened, so a cache outage only costs
// a later repository read.
func (uc *FaceUseCase) recordOutcome(ctx context.Context, opLogger *zap.Logger, outcome *Outcome) {
	log := &repository.AttendanceLog{
		RequestID: outcome.RequestID,
		StudentID: outcome.StudentID,
		Matched:   outcome.Matched,
		Distance:  outcome.Distance,
		Details:   fmt.Sprintf("matched:%t distance:%f threshold:%f", outcome.Matched, outcome.Distance, uc.threshold),
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.withStoreTimeout(ctx, "usecase.save_log", func(ctx context.Context) error {
		return uc.attendance.SaveLog(ctx, log)
	}); err != nil {
		opLogger.Warn("failed to persist verification outcome", zap.Error(err))
	}

	payload := cachedOutcome{
		RequestID: log.RequestID,
		StudentID: log.StudentID,
		Matched:   log.Matched,
		Distance:  log.Distance,
		Details:   log.Details,
		CreatedAt: log.CreatedAt,
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		opLogger.Warn("failed to serialize outcome for cache", zap.Error(err))
		return
	}
	if err := uc.cache.Set(ctx, outcomeCacheKey(log.RequestID), string(serialized), outcomeCacheTTL); err != nil {
		opLogger.Warn("failed to cache verification outcome", zap.Error(err))
	}
}

// extract calls the embedding server under the configured timeout.
func (uc *FaceUseCase) extract(ctx context.Context, image []byte) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.extractorTimeout)
	defer cancel()

	embedding, err := uc.extractor.Extract(callCtx, image)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: extractor", ErrTimeout)
		}
		return nil, err
	}
	return embedding, nil
}

// withStoreTimeout bounds a store round trip and maps deadline expiry to
// ErrTimeout.
func (uc *FaceUseCase) withStoreTimeout(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, uc.storeTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, operation)
		}
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return err
		}
		return logging.NewOperationError(operation, "", err)
	}
	return nil
}

func outcomeCacheKey(requestID string) string {
	return fmt.Sprintf("verification:%s", requestID)
}
