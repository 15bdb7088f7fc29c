package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"etalase/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// NoticeTTL is how long a save confirmation stays visible.
const NoticeTTL = 3 * time.Second

const (
	NoticeCreated = "Product added successfully!"
	NoticeUpdated = "Product updated successfully!"
	NoticeDeleted = "Product deleted."
)

// FormMode is either CreateMode or EditingMode.
type FormMode interface {
	isFormMode()
}

// CreateMode means saving inserts a new product.
type CreateMode struct{}

// EditingMode means saving overwrites the product with ID.
type EditingMode struct {
	ID string
}

func (CreateMode) isFormMode()  {}
func (EditingMode) isFormMode() {}

// AdminForm is the create/edit form as the admin typed it. Price stays text
// until Save parses it.
type AdminForm struct {
	Mode        FormMode
	Name        string `form:"name" validate:"required"`
	Description string `form:"description" validate:"required"`
	Price       string `form:"price" validate:"required"`
	ImageURL    string `form:"image_url" validate:"omitempty,url"`
	InStock     bool   `form:"in_stock"`
}

// NewForm returns an empty create form. New products default to in stock.
func NewForm() AdminForm {
	return AdminForm{Mode: CreateMode{}, InStock: true}
}

// EditingID reports the bound product ID when the form is in edit mode.
func (f AdminForm) EditingID() (string, bool) {
	if m, ok := f.Mode.(EditingMode); ok {
		return m.ID, true
	}
	return "", false
}

// ImageFile is a locally selected file awaiting upload.
type ImageFile struct {
	Filename string
	Content  io.Reader
}

// Notice is a transient confirmation shown after a successful action.
type Notice struct {
	Message   string
	ExpiresAt time.Time
}

// Active reports whether the notice should still be displayed at now.
func (n Notice) Active(now time.Time) bool {
	return n.Message != "" && now.Before(n.ExpiresAt)
}

// SaveResult is what a successful Save hands back: the stored product and the
// reset form to show next.
type SaveResult struct {
	Product *models.Product
	Form    AdminForm
	Notice  Notice
}

// Uploader turns a local file into a hosted image URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, file io.Reader) (string, error)
}

// ProductWriter is the part of the product store the form controller drives.
type ProductWriter interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, payload models.ProductPayload) (*models.Product, error)
	Update(ctx context.Context, id string, payload models.ProductPayload) (*models.Product, error)
	Delete(ctx context.Context, id string) error
}

// AdminFormController validates the admin form, uploads a selected image and
// persists the product.
type AdminFormController struct {
	store    ProductWriter
	uploader Uploader
	validate *validator.Validate
	now      func() time.Time
}

// NewAdminFormController creates a controller. uploader may be nil when no
// image host is configured; saving with a file then fails with ErrUploadFailure.
func NewAdminFormController(store ProductWriter, uploader Uploader) *AdminFormController {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("form"); name != "" {
			return name
		}
		return fld.Name
	})
	return &AdminFormController{
		store:    store,
		uploader: uploader,
		validate: validate,
		now:      time.Now,
	}
}

// Edit preloads the form with the stored product. No file is preselected.
func (c *AdminFormController) Edit(ctx context.Context, id string) (AdminForm, error) {
	product, err := c.store.Get(ctx, id)
	if err != nil {
		return AdminForm{}, err
	}
	return AdminForm{
		Mode:        EditingMode{ID: product.ID},
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price.StringFixed(2),
		ImageURL:    product.ImageURL,
		InStock:     product.InStock,
	}, nil
}

// Cancel abandons an edit and returns to an empty create form.
func (c *AdminFormController) Cancel() AdminForm {
	return NewForm()
}

// Validate checks the required fields and parses the price. It never touches
// the network.
func (c *AdminFormController) Validate(form AdminForm) (models.ProductPayload, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Description = strings.TrimSpace(form.Description)
	form.Price = strings.TrimSpace(form.Price)
	form.ImageURL = strings.TrimSpace(form.ImageURL)

	fields := map[string]string{}
	if err := c.validate.Struct(form); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return models.ProductPayload{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				fields[e.Field()] = fmt.Sprintf("%s is required", e.Field())
			case "url":
				fields[e.Field()] = "image URL must be an absolute URL"
			default:
				fields[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
			}
		}
	}

	var cause error
	price := decimal.Zero
	if _, missing := fields["price"]; !missing {
		parsed, err := decimal.NewFromString(form.Price)
		switch {
		case err != nil:
			fields["price"] = "price must be a number"
			cause = models.ErrInvalidPrice
		case parsed.IsNegative():
			fields["price"] = "price must not be negative"
			cause = models.ErrInvalidPrice
		case !parsed.Equal(parsed.Round(2)):
			fields["price"] = "price must have at most 2 decimal places"
			cause = models.ErrInvalidPrice
		default:
			price = parsed
		}
	}

	if len(fields) > 0 {
		return models.ProductPayload{}, &models.ValidationError{Fields: fields, Cause: cause}
	}

	return models.ProductPayload{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
		ImageURL:    form.ImageURL,
		InStock:     form.InStock,
	}, nil
}

// Save validates the form, uploads file first when one is given (its URL wins
// over a typed one), then creates or updates depending on the form mode. On
// error the caller keeps showing the submitted form.
func (c *AdminFormController) Save(ctx context.Context, form AdminForm, file *ImageFile) (*SaveResult, error) {
	payload, err := c.Validate(form)
	if err != nil {
		return nil, err
	}

	if file != nil {
		if c.uploader == nil {
			return nil, fmt.Errorf("%w: no image host configured", models.ErrUploadFailure)
		}
		url, err := c.uploader.Upload(ctx, file.Filename, file.Content)
		if err != nil {
			if !errors.Is(err, models.ErrUploadFailure) {
				err = fmt.Errorf("%w: %w", models.ErrUploadFailure, err)
			}
			return nil, err
		}
		payload.ImageURL = url
	}

	var (
		product *models.Product
		message string
	)
	switch mode := form.Mode.(type) {
	case EditingMode:
		product, err = c.store.Update(ctx, mode.ID, payload)
		message = NoticeUpdated
	default:
		product, err = c.store.Create(ctx, payload)
		message = NoticeCreated
	}
	if err != nil {
		return nil, err
	}

	return &SaveResult{
		Product: product,
		Form:    NewForm(),
		Notice:  Notice{Message: message, ExpiresAt: c.now().Add(NoticeTTL)},
	}, nil
}

// Delete removes the product once the admin has confirmed. There is no undo.
func (c *AdminFormController) Delete(ctx context.Context, id string, confirmed bool) (Notice, error) {
	if !confirmed {
		return Notice{}, models.ErrNotConfirmed
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return Notice{}, err
	}
	return Notice{Message: NoticeDeleted, ExpiresAt: c.now().Add(NoticeTTL)}, nil
}
