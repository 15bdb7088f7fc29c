package handlers

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"etalase/internal/middleware"
	"etalase/internal/models"
	"etalase/internal/services"
	"etalase/internal/views"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the admin panel and the admin JSON API. Both are
// mounted behind a session guard.
type AdminHandler struct {
	store          *services.ProductStore
	forms          *services.AdminFormController
	layout         views.Layout
	currencySymbol string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store *services.ProductStore, forms *services.AdminFormController, layout views.Layout, currencySymbol string) *AdminHandler {
	layout.LoggedIn = true
	layout.Title = "Admin"
	return &AdminHandler{
		store:          store,
		forms:          forms,
		layout:         layout,
		currencySymbol: currencySymbol,
	}
}

// RegisterPageRoutes registers the admin pages on a guarded /admin group.
func (h *AdminHandler) RegisterPageRoutes(router fiber.Router) {
	router.Get("/", h.HandleAdminPage)
	router.Post("/products", h.HandleSaveForm)
	router.Post("/products/:id/delete", h.HandleDeleteForm)
}

// RegisterRoutes registers the JSON CRUD routes on a guarded API group.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleAdminPage renders the panel. ?edit={id} preloads the form; with
// ?partial=1 only the product table is returned.
func (h *AdminHandler) HandleAdminPage(c *fiber.Ctx) error {
	page := h.page(c)
	status := fiber.StatusOK

	if message, ok := noticeMessages[c.Query("notice")]; ok {
		page.Notice = services.Notice{Message: message, ExpiresAt: time.Now().Add(services.NoticeTTL)}
	}

	if id := c.Query("edit"); id != "" {
		form, err := h.forms.Edit(c.UserContext(), id)
		if err != nil {
			log.Printf("Error loading product %s for edit: %v", id, err)
			status = statusFor(err)
			page.Error = userMessage(err)
		} else {
			page.Form = form
			page.EditingID = id
		}
	}

	if c.QueryBool("partial") {
		return h.render(c, status, "admin_table", page)
	}
	return h.render(c, status, "admin", page)
}

// HandleSaveForm saves the multipart admin form. An "id" field means edit mode.
func (h *AdminHandler) HandleSaveForm(c *fiber.Ctx) error {
	form := services.NewForm()
	form.Name = c.FormValue("name")
	form.Description = c.FormValue("description")
	form.Price = c.FormValue("price")
	form.ImageURL = c.FormValue("image_url")
	form.InStock = formBool(c.FormValue("in_stock"))
	if id := strings.TrimSpace(c.FormValue("id")); id != "" {
		form.Mode = services.EditingMode{ID: id}
	}

	var file *services.ImageFile
	if header, err := c.FormFile("image"); err == nil && header.Size > 0 {
		f, err := header.Open()
		if err != nil {
			log.Printf("Error opening uploaded file %s: %v", header.Filename, err)
			page := h.page(c)
			page.Form = form
			page.EditingID, _ = form.EditingID()
			page.Error = userMessage(models.ErrUploadFailure)
			return h.render(c, fiber.StatusBadRequest, "admin", page)
		}
		defer f.Close()
		file = &services.ImageFile{Filename: header.Filename, Content: f}
	}

	result, err := h.forms.Save(c.UserContext(), form, file)
	if err != nil {
		log.Printf("Error saving product: %v", err)
		page := h.page(c)
		page.Form = form
		page.EditingID, _ = form.EditingID()
		page.FieldErrors = fieldErrors(err)
		page.Error = userMessage(err)
		return h.render(c, statusFor(err), "admin", page)
	}

	return redirectWithNotice(c, result.Notice)
}

// HandleDeleteForm deletes a product once the form carries confirm=yes.
func (h *AdminHandler) HandleDeleteForm(c *fiber.Ctx) error {
	notice, err := h.forms.Delete(c.UserContext(), c.Params("id"), c.FormValue("confirm") == "yes")
	if err != nil {
		log.Printf("Error deleting product %s: %v", c.Params("id"), err)
		page := h.page(c)
		page.Error = userMessage(err)
		return h.render(c, statusFor(err), "admin", page)
	}
	return redirectWithNotice(c, notice)
}

// noticeMessages maps the ?notice= key of the admin page to its text.
var noticeMessages = map[string]string{
	"created": services.NoticeCreated,
	"updated": services.NoticeUpdated,
	"deleted": services.NoticeDeleted,
}

// redirectWithNotice sends the browser back to GET /admin after a write so a
// reload does not repeat it.
func redirectWithNotice(c *fiber.Ctx, notice services.Notice) error {
	for key, message := range noticeMessages {
		if message == notice.Message {
			return c.Redirect("/admin?notice="+key, fiber.StatusSeeOther)
		}
	}
	return c.Redirect("/admin", fiber.StatusSeeOther)
}

// page builds the panel with the current product list and an empty form.
func (h *AdminHandler) page(c *fiber.Ctx) views.AdminPage {
	page := views.AdminPage{
		Layout:         h.layout,
		Form:           services.NewForm(),
		NoticeTTL:      services.NoticeTTL,
		CurrencySymbol: h.currencySymbol,
	}
	if session := middleware.SessionFrom(c); session != nil {
		page.Email = session.Email
	}
	products, err := h.store.List(c.UserContext())
	if err != nil {
		log.Printf("Error listing products for admin: %v", err)
		page.Error = userMessage(err)
	}
	page.Products = products
	return page
}

func (h *AdminHandler) render(c *fiber.Ctx, status int, name string, page views.AdminPage) error {
	c.Status(status).Type("html")
	return views.Render(c, name, page)
}

func formBool(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// ProductRequest is the JSON body of the admin create and update endpoints.
// Price may be a JSON number or a numeric string.
type ProductRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	ImageURL    string      `json:"image_url"`
	InStock     *bool       `json:"in_stock"`
}

func (r ProductRequest) form(mode services.FormMode) services.AdminForm {
	form := services.NewForm()
	form.Mode = mode
	form.Name = r.Name
	form.Description = r.Description
	form.Price = r.Price.String()
	form.ImageURL = r.ImageURL
	if r.InStock != nil {
		form.InStock = *r.InStock
	}
	return form
}

// HandleGetProducts lists every product.
func (h *AdminHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.store.List(c.UserContext())
	if err != nil {
		log.Printf("Error getting all products: %v", err)
		return errorJSON(c, "Could not retrieve products", err)
	}
	return c.JSON(products)
}

// HandleGetProduct retrieves a single product by its ID.
func (h *AdminHandler) HandleGetProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	product, err := h.store.Get(c.UserContext(), id)
	if err != nil {
		log.Printf("Error getting product by ID %s: %v", id, err)
		return errorJSON(c, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a product from a JSON body.
func (h *AdminHandler) HandleCreateProduct(c *fiber.Ctx) error {
	return h.saveJSON(c, services.CreateMode{}, fiber.StatusCreated)
}

// HandleUpdateProduct overwrites a product from a JSON body.
func (h *AdminHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	return h.saveJSON(c, services.EditingMode{ID: c.Params("id")}, fiber.StatusOK)
}

func (h *AdminHandler) saveJSON(c *fiber.Ctx, mode services.FormMode, status int) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing product request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	result, err := h.forms.Save(c.UserContext(), req.form(mode), nil)
	if err != nil {
		log.Printf("Error saving product: %v", err)
		return errorJSON(c, "Could not save product", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": result.Notice.Message,
		"product": result.Product,
	})
}

// HandleDeleteProduct deletes a product. The request must carry ?confirm=yes.
func (h *AdminHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	notice, err := h.forms.Delete(c.UserContext(), id, c.Query("confirm") == "yes")
	if err != nil {
		log.Printf("Error deleting product %s: %v", id, err)
		return errorJSON(c, "Could not delete product", err)
	}
	return c.JSON(fiber.Map{"message": notice.Message})
}
