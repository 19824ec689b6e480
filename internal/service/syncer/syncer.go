// Package syncer mirrors remote optimizer results into the local store.
//
// The local store is a cache of remote truth: every sync path ends in an
// upsert keyed on (owner, operation id), so re-syncing is always safe and
// the dashboard reads only local rows.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/minimahq/minima/internal/model"
	"github.com/minimahq/minima/internal/remote"
	"github.com/minimahq/minima/internal/telemetry"
	"github.com/minimahq/minima/internal/transform"
)

// ErrNoCredential indicates the owner has no usable optimizer key. Sync is
// unavailable for them, which is a degraded state rather than a failure.
var ErrNoCredential = errors.New("syncer: no usable credential for owner")

// ErrEmptyBatch rejects a batch sync with no operation ids before any remote
// call is made.
var ErrEmptyBatch = errors.New("syncer: operation_ids must not be empty")

// ErrBatchTooLarge rejects oversized batch syncs up front.
var ErrBatchTooLarge = fmt.Errorf("syncer: at most %d operation ids per batch", model.MaxSyncBatchSize)

// Store is the local persistence surface the orchestrator needs.
type Store interface {
	UpsertResult(ctx context.Context, res model.OptimizationResult) (model.OptimizationResult, error)
	HasResult(ctx context.Context, ownerID uuid.UUID, operationID string) (bool, error)
}

// Remote is the optimizer-service surface the orchestrator needs.
type Remote interface {
	FetchResult(ctx context.Context, key, operationID string) (remote.Payload, error)
	FetchStatus(ctx context.Context, key, operationID string) (remote.Payload, error)
	ListRecent(ctx context.Context, key string, limit, offset int) ([]remote.Payload, error)
}

// Keys resolves an owner's optimizer credential plaintext.
type Keys interface {
	DecryptForUse(ctx context.Context, ownerID uuid.UUID) (string, error)
}

// Service orchestrates single, batch, and automatic syncs.
type Service struct {
	store       Store
	remote      Remote
	keys        Keys
	logger      *slog.Logger
	window      int
	concurrency int

	syncAttempts metric.Int64Counter
	syncFailures metric.Int64Counter
	syncSkips    metric.Int64Counter
}

// New creates a sync orchestrator. window is how many recent remote
// operations an auto sync inspects; concurrency bounds parallel remote
// fetches within one batch.
func New(store Store, rem Remote, keys Keys, logger *slog.Logger, window, concurrency int) *Service {
	if window <= 0 {
		window = 50
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	meter := telemetry.Meter("minima/syncer")
	attempts, _ := meter.Int64Counter("minima.sync.attempts")
	failures, _ := meter.Int64Counter("minima.sync.failures")
	skips, _ := meter.Int64Counter("minima.sync.skips")

	return &Service{
		store:        store,
		remote:       rem,
		keys:         keys,
		logger:       logger,
		window:       window,
		concurrency:  concurrency,
		syncAttempts: attempts,
		syncFailures: failures,
		syncSkips:    skips,
	}
}

// SyncOne fetches one operation from the remote service and mirrors it
// locally. The result endpoint is tried first, then the status endpoint for
// operations still in flight. Returns (nil, nil) when the remote service
// knows nothing about the id; returns ErrNoCredential when the owner has no
// usable key.
func (s *Service) SyncOne(ctx context.Context, ownerID uuid.UUID, operationID string) (*model.OptimizationResult, error) {
	key, err := s.keys.DecryptForUse(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoCredential
	}
	return s.syncWithKey(ctx, ownerID, key, operationID)
}

func (s *Service) syncWithKey(ctx context.Context, ownerID uuid.UUID, key, operationID string) (*model.OptimizationResult, error) {
	s.syncAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "one")))

	payload, err := s.remote.FetchResult(ctx, key, operationID)
	if err != nil {
		s.syncFailures.Add(ctx, 1)
		return nil, err
	}
	if payload == nil {
		payload, err = s.remote.FetchStatus(ctx, key, operationID)
		if err != nil {
			s.syncFailures.Add(ctx, 1)
			return nil, err
		}
	}
	if payload == nil {
		return nil, nil
	}

	return s.mirror(ctx, ownerID, operationID, payload)
}

// mirror transforms a payload and upserts it under the requested operation
// id. The requested id wins over whatever the payload claims, so a response
// missing its own id still lands on the right row.
func (s *Service) mirror(ctx context.Context, ownerID uuid.UUID, operationID string, payload remote.Payload) (*model.OptimizationResult, error) {
	res := transform.ToResult(payload, ownerID)
	if operationID != "" {
		res.OperationID = operationID
	}
	if res.OperationID == "" {
		return nil, fmt.Errorf("syncer: payload has no operation id")
	}

	saved, err := s.store.UpsertResult(ctx, res)
	if err != nil {
		s.syncFailures.Add(ctx, 1)
		return nil, err
	}

	s.logger.Debug("syncer: mirrored result",
		"owner_id", ownerID, "operation_id", saved.OperationID, "status", saved.Status)
	return &saved, nil
}

// SyncMany syncs a batch of operation ids with bounded concurrency. The
// batch is validated before any remote call; after that each id gets exactly
// one outcome and a failing id never aborts the rest.
func (s *Service) SyncMany(ctx context.Context, ownerID uuid.UUID, operationIDs []string) (model.SyncSummary, error) {
	if len(operationIDs) == 0 {
		return model.SyncSummary{}, ErrEmptyBatch
	}
	if len(operationIDs) > model.MaxSyncBatchSize {
		return model.SyncSummary{}, ErrBatchTooLarge
	}

	key, err := s.keys.DecryptForUse(ctx, ownerID)
	if err != nil {
		return model.SyncSummary{}, err
	}
	if key == "" {
		return model.SyncSummary{}, ErrNoCredential
	}

	outcomes := make([]model.SyncOutcome, len(operationIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range operationIDs {
		g.Go(func() error {
			outcomes[i] = s.syncOutcome(gctx, ownerID, key, id)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(outcomes), nil
}

func (s *Service) syncOutcome(ctx context.Context, ownerID uuid.UUID, key, operationID string) model.SyncOutcome {
	if err := model.ValidateOperationID(operationID); err != nil {
		return model.SyncOutcome{OperationID: operationID, Error: err.Error()}
	}

	res, err := s.syncWithKey(ctx, ownerID, key, operationID)
	switch {
	case err != nil:
		s.logger.Warn("syncer: batch item failed",
			"owner_id", ownerID, "operation_id", operationID, "error", err)
		return model.SyncOutcome{OperationID: operationID, Error: err.Error()}
	case res == nil:
		return model.SyncOutcome{OperationID: operationID, Error: "not found on remote service"}
	default:
		return model.SyncOutcome{OperationID: operationID, Success: true}
	}
}

// AutoSync lists the owner's recent remote operations and mirrors the ones
// not yet cached locally. Operations already present are skipped without a
// remote refetch, which makes repeated auto syncs idempotent and cheap.
// Returns ErrNoCredential when the owner has no usable key.
func (s *Service) AutoSync(ctx context.Context, ownerID uuid.UUID) (model.SyncSummary, error) {
	key, err := s.keys.DecryptForUse(ctx, ownerID)
	if err != nil {
		return model.SyncSummary{}, err
	}
	if key == "" {
		return model.SyncSummary{}, ErrNoCredential
	}

	s.syncAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "auto")))

	listed, err := s.remote.ListRecent(ctx, key, s.window, 0)
	if err != nil {
		s.syncFailures.Add(ctx, 1)
		return model.SyncSummary{}, err
	}

	var outcomes []model.SyncOutcome
	skipped := 0
	for _, payload := range listed {
		operationID := listedOperationID(payload)
		if operationID == "" {
			continue
		}

		exists, err := s.store.HasResult(ctx, ownerID, operationID)
		if err != nil {
			outcomes = append(outcomes, model.SyncOutcome{OperationID: operationID, Error: err.Error()})
			continue
		}
		if exists {
			skipped++
			s.syncSkips.Add(ctx, 1)
			continue
		}

		outcomes = append(outcomes, s.autoSyncOutcome(ctx, ownerID, key, operationID, payload))
	}

	summary := summarize(outcomes)
	summary.Skipped = skipped
	s.logger.Info("syncer: auto sync finished",
		"owner_id", ownerID, "listed", len(listed),
		"synced", summary.Synced, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// autoSyncOutcome mirrors one listed operation. The id is refetched for the
// full payload; if the per-id endpoints have nothing (some deployments only
// expose the list), the listed payload itself is mirrored.
func (s *Service) autoSyncOutcome(ctx context.Context, ownerID uuid.UUID, key, operationID string, listed remote.Payload) model.SyncOutcome {
	res, err := s.syncWithKey(ctx, ownerID, key, operationID)
	if err != nil {
		s.logger.Warn("syncer: auto sync item failed",
			"owner_id", ownerID, "operation_id", operationID, "error", err)
		return model.SyncOutcome{OperationID: operationID, Error: err.Error()}
	}
	if res == nil {
		if _, err := s.mirror(ctx, ownerID, operationID, listed); err != nil {
			return model.SyncOutcome{OperationID: operationID, Error: err.Error()}
		}
	}
	return model.SyncOutcome{OperationID: operationID, Success: true}
}

func listedOperationID(p remote.Payload) string {
	for _, k := range []string{"operation_id", "id"} {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func summarize(outcomes []model.SyncOutcome) model.SyncSummary {
	summary := model.SyncSummary{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Success {
			summary.Synced++
		} else {
			summary.Failed++
		}
	}
	return summary
}
