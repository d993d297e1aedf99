package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"slices"
	"strconv"

	"katalog/internal/apperror"
	"katalog/internal/models"
	"katalog/internal/normalize"
	"katalog/internal/services"
	"katalog/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxShowcaseFiles caps the number of files in one showcase upload.
const MaxShowcaseFiles = 10

// ProductHandlerConfig holds the boundary limits of the product routes.
type ProductHandlerConfig struct {
	MaxPageSize    int
	MaxUploadBytes int64
}

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	logger   *zap.Logger
	cfg      ProductHandlerConfig
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, cfg ProductHandlerConfig, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		cfg:      cfg,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Post("/:id/showcase", h.HandleAttachShowcase)
}

type createProductRequest struct {
	Name        string `form:"name" validate:"required,max=100"`
	Description string `form:"description" validate:"max=5000"`
	Price       string `form:"price" validate:"required,numeric"`
	Quantity    string `form:"quantity" validate:"required,number"`
}

type updateProductRequest struct {
	Name        *string `form:"name" validate:"omitempty,min=1,max=100"`
	Description *string `form:"description" validate:"omitempty,max=5000"`
	Price       *string `form:"price" validate:"omitempty,numeric"`
	Quantity    *string `form:"quantity" validate:"omitempty,number"`
}

// HandleGetProducts returns one page of products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	page, err := normalize.Pagination(c.Query("skip"), c.Query("take"))
	if err != nil {
		return h.respondError(c, "Could not retrieve products", err)
	}
	if page.Take > h.cfg.MaxPageSize {
		page.Take = h.cfg.MaxPageSize
	}

	products, page, err := h.service.ListProducts(c.UserContext(), page.Skip, page.Take)
	if err != nil {
		return h.respondError(c, "Could not retrieve products", err)
	}
	return c.JSON(fiber.Map{
		"data": products,
		"skip": page.Skip,
		"take": page.Take,
	})
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.respondError(c, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a product from a multipart form with one primaryImg file.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, "Validation failed", err)
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return badRequest(c, "Invalid price", err)
	}
	quantity, err := strconv.Atoi(req.Quantity)
	if err != nil {
		return badRequest(c, "Invalid quantity", err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "Invalid multipart form", err)
	}
	headers := formFiles(form, "primaryImg")
	if len(headers) != 1 {
		return badRequest(c, "Exactly one primaryImg file is required", nil)
	}
	files, closeFiles, err := h.openFiles(headers)
	if err != nil {
		return h.respondError(c, "Invalid image", err)
	}
	defer closeFiles()

	product, err := h.service.CreateProduct(c.UserContext(), services.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Quantity:    quantity,
		Tag:         listField(form, "tag"),
		Color:       listField(form, "color"),
		Image:       files[0],
	})
	if err != nil {
		return h.respondError(c, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created successfully",
		"data":    product,
	})
}

// HandleUpdateProduct applies a full update; an img file replaces the primary image.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req updateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, "Validation failed", err)
	}

	in := services.UpdateProductInput{
		ID:          c.Params("id"),
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			return badRequest(c, "Invalid price", err)
		}
		in.Price = &price
	}
	if req.Quantity != nil {
		quantity, err := strconv.Atoi(*req.Quantity)
		if err != nil {
			return badRequest(c, "Invalid quantity", err)
		}
		in.Quantity = &quantity
	}

	if form, err := c.MultipartForm(); err == nil {
		in.Tag = listField(form, "tag")
		in.Color = listField(form, "color")

		headers := formFiles(form, "img")
		if len(headers) > 1 {
			return badRequest(c, "At most one img file is allowed", nil)
		}
		if len(headers) == 1 {
			files, closeFiles, err := h.openFiles(headers)
			if err != nil {
				return h.respondError(c, "Invalid image", err)
			}
			defer closeFiles()
			in.Image = &files[0]
		}
	}

	product, err := h.service.UpdateProduct(c.UserContext(), in)
	if err != nil {
		return h.respondError(c, "Could not update product", err)
	}
	return c.JSON(fiber.Map{
		"message": "Product updated successfully",
		"data":    product,
	})
}

// HandleAttachShowcase appends the uploaded img files to the product's showcase.
func (h *ProductHandler) HandleAttachShowcase(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "Invalid multipart form", err)
	}
	headers := formFiles(form, "img")
	if len(headers) == 0 {
		return badRequest(c, "At least one img file is required", nil)
	}
	if len(headers) > MaxShowcaseFiles {
		return badRequest(c, fmt.Sprintf("At most %d img files are allowed", MaxShowcaseFiles), nil)
	}
	files, closeFiles, err := h.openFiles(headers)
	if err != nil {
		return h.respondError(c, "Invalid image", err)
	}
	defer closeFiles()

	product, err := h.service.AttachShowcaseImages(c.UserContext(), c.Params("id"), files)
	if err != nil {
		return h.respondError(c, "Could not upload showcase images", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Showcase images uploaded successfully",
		"data":    product,
	})
}

var errFileTooLarge = errors.New("file too large")

// openFiles opens every header as a storage.File. The returned func closes them all.
func (h *ProductHandler) openFiles(headers []*multipart.FileHeader) ([]storage.File, func(), error) {
	files := make([]storage.File, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	for _, fh := range headers {
		if fh.Size > h.cfg.MaxUploadBytes {
			closeAll()
			return nil, func() {}, fmt.Errorf("%w: %s is %d bytes, limit is %d", errFileTooLarge, fh.Filename, fh.Size, h.cfg.MaxUploadBytes)
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		files = append(files, storage.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return files, closeAll, nil
}

// formFiles returns the files sent under key or key[].
func formFiles(form *multipart.Form, key string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	return slices.Concat(form.File[key], form.File[key+"[]"])
}

// listField returns a list field as sent: nil when absent, the raw string for a
// single value and the values slice when repeated.
func listField(form *multipart.Form, key string) any {
	if form == nil {
		return nil
	}
	values := slices.Concat(form.Value[key], form.Value[key+"[]"])
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	body := fiber.Map{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// respondError maps a failure kind to its HTTP status.
func (h *ProductHandler) respondError(c *fiber.Ctx, message string, err error) error {
	status := statusFor(err)
	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
	}
	if orphans := apperror.Orphans(err); len(orphans) > 0 {
		body["orphaned_file_ids"] = models.FileIDs(orphans)
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}
	return c.Status(status).JSON(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperror.ErrInvalidFieldShape),
		errors.Is(err, apperror.ErrInvalidPagination),
		errors.Is(err, apperror.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, errFileTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case apperror.IsOrphaning(err):
		return fiber.StatusInternalServerError
	case errors.Is(err, apperror.ErrUploadFailed),
		errors.Is(err, apperror.ErrDeleteFailed),
		errors.Is(err, apperror.ErrBulkUploadFailed):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
