// Package apperror defines the failure kinds reported by the catalog core.
package apperror

import (
	"errors"
	"fmt"
	"strings"

	"katalog/internal/models"
)

// Failure kinds. Match them with errors.Is.
var (
	// ErrNotFound indicates an unknown product id.
	ErrNotFound = errors.New("product not found")

	// ErrInvalidFieldShape indicates a list field that is neither a sequence nor a delimited string.
	ErrInvalidFieldShape = errors.New("invalid field shape")

	// ErrInvalidPagination indicates a non-numeric or negative skip/take value.
	ErrInvalidPagination = errors.New("invalid pagination")

	// ErrInvalidInput indicates a request that failed field validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUploadFailed indicates the asset gateway rejected an upload.
	ErrUploadFailed = errors.New("upload failed")

	// ErrDeleteFailed indicates the asset gateway rejected a delete.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrPartialCreateFailure indicates the product write failed after its image was uploaded.
	ErrPartialCreateFailure = errors.New("partial create failure")

	// ErrPartialUpdateFailure indicates the product write failed after a replacement image was uploaded.
	ErrPartialUpdateFailure = errors.New("partial update failure")

	// ErrBulkUploadFailed indicates a showcase batch could not be attached.
	ErrBulkUploadFailed = errors.New("bulk upload failed")
)

// OpError ties a failure kind to the operation and product it happened in.
type OpError struct {
	Kind      error
	Op        string
	ProductID string
	Err       error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.ProductID != "" {
		fmt.Fprintf(&b, " product %s", e.ProductID)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// OrphanError is a failure that left uploaded assets in the object store with
// no product referencing them. Callers use Orphans to reconcile.
type OrphanError struct {
	OpError
	Orphans []models.Asset
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("%s (orphaned assets: %s)", e.OpError.Error(), strings.Join(models.FileIDs(e.Orphans), ", "))
}

func (e *OrphanError) Unwrap() []error {
	return e.OpError.Unwrap()
}

// New returns an OpError of the given kind.
func New(kind error, op, productID string, cause error) error {
	return &OpError{Kind: kind, Op: op, ProductID: productID, Err: cause}
}

// NewOrphan returns an OrphanError of the given kind.
func NewOrphan(kind error, op, productID string, orphans []models.Asset, cause error) error {
	return &OrphanError{
		OpError: OpError{Kind: kind, Op: op, ProductID: productID, Err: cause},
		Orphans: orphans,
	}
}

// IsOrphaning reports whether err left orphaned assets behind.
func IsOrphaning(err error) bool {
	var orphanErr *OrphanError
	return errors.As(err, &orphanErr) && len(orphanErr.Orphans) > 0
}

// Orphans returns the assets orphaned by err, if any.
func Orphans(err error) []models.Asset {
	var orphanErr *OrphanError
	if errors.As(err, &orphanErr) {
		return orphanErr.Orphans
	}
	return nil
}
