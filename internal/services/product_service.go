package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"katalog/internal/apperror"
	"katalog/internal/models"
	"katalog/internal/normalize"
	"katalog/internal/repositories"
	"katalog/internal/storage"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opCreate         = "create"
	opUpdate         = "update"
	opAttachShowcase = "attach_showcase"
	opList           = "list"
	opGet            = "get"
)

var tracer = otel.Tracer("katalog/internal/services")

// ReplaceOrder selects how a primary image replacement is sequenced.
type ReplaceOrder string

const (
	// DeleteThenUpload deletes the old object before uploading the new one.
	// A failed upload leaves the product pointing at a deleted asset until the next replace.
	DeleteThenUpload ReplaceOrder = "delete-then-upload"
	// UploadThenDelete uploads and commits first, then deletes the superseded object.
	// A failed delete leaves the old object orphaned but the product consistent.
	UploadThenDelete ReplaceOrder = "upload-then-delete"
)

// ParseReplaceOrder validates a configured replace order. Empty means DeleteThenUpload.
func ParseReplaceOrder(s string) (ReplaceOrder, error) {
	switch ReplaceOrder(s) {
	case "", DeleteThenUpload:
		return DeleteThenUpload, nil
	case UploadThenDelete:
		return UploadThenDelete, nil
	default:
		return "", fmt.Errorf("unknown replace order %q", s)
	}
}

// OrphanPublisher forwards orphaned assets to an out-of-band reconciler.
type OrphanPublisher interface {
	PublishOrphanEvent(ctx context.Context, event models.OrphanEvent) error
}

// CreateProductInput is a validated create request. Tag and Color hold the raw
// list values and are coerced by the service.
type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Tag         any
	Color       any
	Image       storage.File
}

// UpdateProductInput is a validated full-update request. Nil fields are left unchanged.
type UpdateProductInput struct {
	ID          string
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Tag         any
	Color       any
	Image       *storage.File
}

// ProductService sequences asset gateway and repository calls for product mutations.
// No operation spans both stores transactionally; failures that leave uploaded
// assets unreferenced are returned as *apperror.OrphanError and published.
type ProductService struct {
	repo              repositories.ProductRepository
	gateway           storage.AssetGateway
	publisher         OrphanPublisher
	logger            *zap.Logger
	replaceOrder      ReplaceOrder
	uploadConcurrency int
}

// Option configures a ProductService.
type Option func(*ProductService)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *ProductService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOrphanPublisher sets where orphan events go.
func WithOrphanPublisher(p OrphanPublisher) Option {
	return func(s *ProductService) {
		s.publisher = p
	}
}

// WithReplaceOrder sets the primary image replace sequence.
func WithReplaceOrder(order ReplaceOrder) Option {
	return func(s *ProductService) {
		if order != "" {
			s.replaceOrder = order
		}
	}
}

// WithUploadConcurrency caps parallel uploads in a showcase batch. Zero means unlimited.
func WithUploadConcurrency(n int) Option {
	return func(s *ProductService) {
		s.uploadConcurrency = n
	}
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, gateway storage.AssetGateway, opts ...Option) *ProductService {
	s := &ProductService{
		repo:         repo,
		gateway:      gateway,
		logger:       zap.NewNop(),
		replaceOrder: DeleteThenUpload,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetProductByID retrieves a single product with its images.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductService.GetProductByID", trace.WithAttributes(attribute.String("product.id", id)))
	product, err := s.find(ctx, opGet, id)
	endSpan(span, err)
	return product, err
}

// ListProducts returns a page of products. skip and take come straight from the
// request and are normalized here.
func (s *ProductService) ListProducts(ctx context.Context, skip, take any) ([]models.Product, models.Page, error) {
	ctx, span := tracer.Start(ctx, "ProductService.ListProducts")
	products, page, err := s.listProducts(ctx, skip, take)
	span.SetAttributes(attribute.Int("page.skip", page.Skip), attribute.Int("page.take", page.Take))
	endSpan(span, err)
	return products, page, err
}

func (s *ProductService) listProducts(ctx context.Context, skip, take any) ([]models.Product, models.Page, error) {
	page, err := normalize.Pagination(skip, take)
	if err != nil {
		return nil, models.Page{}, err
	}
	products, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, page, fmt.Errorf("%s: %w", opList, err)
	}
	return products, page, nil
}

// CreateProduct uploads the primary image and then stores the product bound to it.
func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductService.CreateProduct")
	product, err := s.createProduct(ctx, in)
	if product != nil {
		span.SetAttributes(attribute.String("product.id", product.ID))
	}
	endSpan(span, err)
	return product, err
}

func (s *ProductService) createProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if err := validateAmounts(&in.Price, &in.Quantity); err != nil {
		return nil, apperror.New(apperror.ErrInvalidInput, opCreate, "", err)
	}
	tags, err := normalize.StringList(in.Tag)
	if err != nil {
		return nil, fmt.Errorf("%s: tag: %w", opCreate, err)
	}
	colors, err := normalize.StringList(in.Color)
	if err != nil {
		return nil, fmt.Errorf("%s: color: %w", opCreate, err)
	}

	asset, err := s.gateway.Upload(ctx, in.Image)
	if err != nil {
		return nil, apperror.New(apperror.ErrUploadFailed, opCreate, "", err)
	}

	product := &models.Product{
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		Quantity:       in.Quantity,
		Tags:           tags,
		Colors:         colors,
		PrimaryImageID: &asset.ID,
		PrimaryImage:   asset,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		orphans := []models.Asset{*asset}
		s.reportOrphans(ctx, opCreate, "", orphans, err)
		return nil, apperror.NewOrphan(apperror.ErrPartialCreateFailure, opCreate, "", orphans, err)
	}

	s.logger.Info("product created",
		zap.String("product_id", product.ID),
		zap.String("primary_image", asset.FileID),
	)
	return product, nil
}

// UpdateProduct applies field updates and, when an image is supplied, replaces
// the primary image in the configured order.
func (s *ProductService) UpdateProduct(ctx context.Context, in UpdateProductInput) (*models.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductService.UpdateProduct", trace.WithAttributes(
		attribute.String("product.id", in.ID),
		attribute.Bool("image.replace", in.Image != nil),
		attribute.String("image.replace_order", string(s.replaceOrder)),
	))
	product, err := s.updateProduct(ctx, in)
	endSpan(span, err)
	return product, err
}

func (s *ProductService) updateProduct(ctx context.Context, in UpdateProductInput) (*models.Product, error) {
	existing, err := s.find(ctx, opUpdate, in.ID)
	if err != nil {
		return nil, err
	}

	update, err := buildUpdate(in)
	if err != nil {
		return nil, err
	}

	if in.Image == nil {
		if update.IsEmpty() {
			return existing, nil
		}
		updated, err := s.repo.Update(ctx, in.ID, update, nil)
		if err != nil {
			return nil, fmt.Errorf("%s product %s: %w", opUpdate, in.ID, err)
		}
		return updated, nil
	}

	if s.replaceOrder == UploadThenDelete {
		return s.uploadThenDelete(ctx, existing, update, *in.Image)
	}
	return s.deleteThenUpload(ctx, existing, update, *in.Image)
}

func (s *ProductService) deleteThenUpload(ctx context.Context, existing *models.Product, update models.ProductUpdate, file storage.File) (*models.Product, error) {
	previous := existing.PrimaryImage
	if previous != nil {
		if err := s.gateway.Delete(ctx, previous.FileID); err != nil {
			return nil, apperror.New(apperror.ErrDeleteFailed, opUpdate, existing.ID, err)
		}
	}

	asset, err := s.gateway.Upload(ctx, file)
	if err != nil {
		if previous != nil {
			s.logger.Warn("primary image deleted but replacement upload failed; product has no live primary image",
				zap.String("product_id", existing.ID),
				zap.String("deleted_file_id", previous.FileID),
				zap.Error(err),
			)
		}
		return nil, apperror.New(apperror.ErrUploadFailed, opUpdate, existing.ID, err)
	}

	updated, err := s.repo.Update(ctx, existing.ID, update, asset)
	if err != nil {
		orphans := []models.Asset{*asset}
		s.reportOrphans(ctx, opUpdate, existing.ID, orphans, err)
		return nil, apperror.NewOrphan(apperror.ErrPartialUpdateFailure, opUpdate, existing.ID, orphans, err)
	}
	return updated, nil
}

func (s *ProductService) uploadThenDelete(ctx context.Context, existing *models.Product, update models.ProductUpdate, file storage.File) (*models.Product, error) {
	asset, err := s.gateway.Upload(ctx, file)
	if err != nil {
		return nil, apperror.New(apperror.ErrUploadFailed, opUpdate, existing.ID, err)
	}

	updated, err := s.repo.Update(ctx, existing.ID, update, asset)
	if err != nil {
		orphans := []models.Asset{*asset}
		s.reportOrphans(ctx, opUpdate, existing.ID, orphans, err)
		return nil, apperror.NewOrphan(apperror.ErrPartialUpdateFailure, opUpdate, existing.ID, orphans, err)
	}

	// The product is already consistent; a failed delete only strands the old object.
	if previous := existing.PrimaryImage; previous != nil {
		if err := s.gateway.Delete(ctx, previous.FileID); err != nil {
			s.reportOrphans(ctx, opUpdate, existing.ID, []models.Asset{*previous}, err)
		}
	}
	return updated, nil
}

// AttachShowcaseImages uploads all files concurrently and appends them to the
// product's showcase only if every upload succeeded.
func (s *ProductService) AttachShowcaseImages(ctx context.Context, id string, files []storage.File) (*models.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductService.AttachShowcaseImages", trace.WithAttributes(
		attribute.String("product.id", id),
		attribute.Int("files.count", len(files)),
	))
	product, err := s.attachShowcaseImages(ctx, id, files)
	endSpan(span, err)
	return product, err
}

func (s *ProductService) attachShowcaseImages(ctx context.Context, id string, files []storage.File) (*models.Product, error) {
	existing, err := s.find(ctx, opAttachShowcase, id)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return existing, nil
	}

	uploaded, err := s.uploadAll(ctx, files)
	if err != nil {
		if len(uploaded) > 0 {
			s.reportOrphans(ctx, opAttachShowcase, id, uploaded, err)
		}
		return nil, apperror.NewOrphan(apperror.ErrBulkUploadFailed, opAttachShowcase, id, uploaded, err)
	}

	product, err := s.repo.AppendShowcaseAssets(ctx, id, uploaded)
	if err != nil {
		s.reportOrphans(ctx, opAttachShowcase, id, uploaded, err)
		return nil, apperror.NewOrphan(apperror.ErrBulkUploadFailed, opAttachShowcase, id, uploaded, err)
	}

	s.logger.Info("showcase images attached",
		zap.String("product_id", id),
		zap.Int("count", len(uploaded)),
	)
	return product, nil
}

// uploadAll fans the uploads out and waits for all of them. The first failure
// cancels the rest. On error it still returns every asset that did upload, in
// input order.
func (s *ProductService) uploadAll(ctx context.Context, files []storage.File) ([]models.Asset, error) {
	results := make([]*models.Asset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if s.uploadConcurrency > 0 {
		g.SetLimit(s.uploadConcurrency)
	}
	for i, file := range files {
		g.Go(func() error {
			asset, err := s.gateway.Upload(gctx, file)
			if err != nil {
				return fmt.Errorf("file %d (%s): %w", i, file.Name, err)
			}
			results[i] = asset
			return nil
		})
	}
	err := g.Wait()

	uploaded := make([]models.Asset, 0, len(files))
	for _, asset := range results {
		if asset != nil {
			uploaded = append(uploaded, *asset)
		}
	}
	return uploaded, err
}

func (s *ProductService) find(ctx context.Context, op, id string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.New(apperror.ErrNotFound, op, id, nil)
		}
		return nil, fmt.Errorf("%s: failed to look up product %s: %w", op, id, err)
	}
	return product, nil
}

func (s *ProductService) reportOrphans(ctx context.Context, op, productID string, orphans []models.Asset, cause error) {
	s.logger.Error("assets orphaned in object store",
		zap.String("operation", op),
		zap.String("product_id", productID),
		zap.Strings("file_ids", models.FileIDs(orphans)),
		zap.Error(cause),
	)
	if s.publisher == nil {
		return
	}
	event := models.OrphanEvent{
		Operation:  op,
		ProductID:  productID,
		Assets:     orphans,
		Reason:     cause.Error(),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishOrphanEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to publish orphan event",
			zap.String("operation", op),
			zap.Strings("file_ids", models.FileIDs(orphans)),
			zap.Error(err),
		)
	}
}

func buildUpdate(in UpdateProductInput) (models.ProductUpdate, error) {
	if err := validateAmounts(in.Price, in.Quantity); err != nil {
		return models.ProductUpdate{}, apperror.New(apperror.ErrInvalidInput, opUpdate, in.ID, err)
	}
	update := models.ProductUpdate{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
	}
	if in.Tag != nil {
		tags, err := normalize.StringList(in.Tag)
		if err != nil {
			return models.ProductUpdate{}, fmt.Errorf("%s: tag: %w", opUpdate, err)
		}
		update.Tags = tags
	}
	if in.Color != nil {
		colors, err := normalize.StringList(in.Color)
		if err != nil {
			return models.ProductUpdate{}, fmt.Errorf("%s: color: %w", opUpdate, err)
		}
		update.Colors = colors
	}
	return update, nil
}

func validateAmounts(price *decimal.Decimal, quantity *int) error {
	if price != nil && price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if quantity != nil && *quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
