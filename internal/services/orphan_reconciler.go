package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"katalog/internal/models"
	"katalog/internal/repositories"
	"katalog/internal/storage"

	"go.uber.org/zap"
)

// OrphanReconciler deletes assets reported as orphaned. It runs outside the
// request path, fed by the orphan queue.
type OrphanReconciler struct {
	gateway storage.AssetGateway
	refs    repositories.AssetReferenceChecker
	logger  *zap.Logger
}

// NewOrphanReconciler creates a reconciler. refs may be nil, in which case
// every reported asset is deleted without checking for references.
func NewOrphanReconciler(gateway storage.AssetGateway, refs repositories.AssetReferenceChecker, logger *zap.Logger) *OrphanReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrphanReconciler{gateway: gateway, refs: refs, logger: logger}
}

// Reconcile deletes every asset of the event that no product references.
// It keeps going after a failed delete and returns all failures joined.
func (r *OrphanReconciler) Reconcile(ctx context.Context, event models.OrphanEvent) error {
	var errs []error
	for _, asset := range event.Assets {
		if r.refs != nil && asset.ID != "" {
			referenced, err := r.refs.IsAssetReferenced(ctx, asset.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("asset %s: %w", asset.ID, err))
				continue
			}
			if referenced {
				r.logger.Info("skipping referenced asset", zap.String("asset_id", asset.ID), zap.String("file_id", asset.FileID))
				continue
			}
		}
		if err := r.gateway.Delete(ctx, asset.FileID); err != nil {
			errs = append(errs, fmt.Errorf("asset %s: %w", asset.FileID, err))
			continue
		}
		r.logger.Info("orphaned asset deleted",
			zap.String("operation", event.Operation),
			zap.String("product_id", event.ProductID),
			zap.String("file_id", asset.FileID),
		)
	}
	return errors.Join(errs...)
}

// HandleMessage decodes a queued orphan event and reconciles it.
func (r *OrphanReconciler) HandleMessage(ctx context.Context, body []byte) error {
	var event models.OrphanEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode orphan event: %w", err)
	}
	return r.Reconcile(ctx, event)
}
