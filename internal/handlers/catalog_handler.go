package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"etalase/internal/models"
	"etalase/internal/services"
	"etalase/internal/views"

	"github.com/gofiber/fiber/v2"
)

// DefaultHeartbeat is how often an idle event stream is pinged.
const DefaultHeartbeat = 25 * time.Second

// CatalogHandler serves the public catalog page, its JSON listing and the
// change event stream.
type CatalogHandler struct {
	store     services.ChangeSource
	catalog   *services.Catalog
	layout    views.Layout
	publicURL string
	heartbeat time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewCatalogHandler creates a new CatalogHandler. publicURL is used as the
// product link in inquiry messages; when empty the request URL is used.
func NewCatalogHandler(store services.ChangeSource, catalog *services.Catalog, layout views.Layout, publicURL string) *CatalogHandler {
	return &CatalogHandler{
		store:     store,
		catalog:   catalog,
		layout:    layout,
		publicURL: publicURL,
		heartbeat: DefaultHeartbeat,
		done:      make(chan struct{}),
	}
}

// RegisterPageRoutes registers the catalog page and the event stream.
func (h *CatalogHandler) RegisterPageRoutes(router fiber.Router) {
	router.Get("/", h.HandleCatalogPage)
	router.Get("/events", h.HandleEvents)
}

// RegisterRoutes registers the public JSON listing.
func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/products", h.HandleListProducts)
}

// SetHeartbeat changes the idle ping interval of new streams.
func (h *CatalogHandler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// Close ends every open event stream. It must run before the server shuts
// down or the open streams keep their connections alive.
func (h *CatalogHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleCatalogPage renders the catalog, filtered by ?q=. With ?partial=1
// only the product list fragment is returned.
func (h *CatalogHandler) HandleCatalogPage(c *fiber.Ctx) error {
	query := c.Query("q")
	page := views.CatalogPage{Layout: h.layout, Query: query}

	state := h.catalog.Load(c.UserContext())
	if state.Err != nil {
		page.Error = userMessage(models.ErrFetchFailure)
	} else {
		page.Listings = h.catalog.Listings(services.Filter(state.Products, query), h.pageURL(c))
	}

	c.Type("html")
	if c.QueryBool("partial") {
		return views.Render(c, "catalog_list", page)
	}
	return views.Render(c, "catalog", page)
}

func (h *CatalogHandler) pageURL(c *fiber.Ctx) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	return c.BaseURL() + "/"
}

// HandleListProducts returns the catalog as JSON, newest first.
func (h *CatalogHandler) HandleListProducts(c *fiber.Ctx) error {
	state := h.catalog.Load(c.UserContext())
	if state.Err != nil {
		return errorJSON(c, "Could not retrieve products", state.Err)
	}
	return c.JSON(services.Filter(state.Products, c.Query("q")))
}

type streamUpdate struct {
	products []models.Product
	err      error
}

// HandleEvents streams a "products" server-sent event carrying the fresh list
// after every change. Only the latest pending list is kept for a slow client.
func (h *CatalogHandler) HandleEvents(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		updates := make(chan streamUpdate, 1)
		live := services.NewLiveCatalog(context.Background(), h.store, func(products []models.Product, err error) {
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- streamUpdate{products: products, err: err}:
			default:
			}
		})
		defer live.Close()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		if err := writeComment(w, "connected"); err != nil {
			return
		}
		for {
			select {
			case <-h.done:
				return
			case u := <-updates:
				if err := writeUpdate(w, u); err != nil {
					log.Printf("Event stream closed: %v", err)
					return
				}
			case <-ticker.C:
				if err := writeComment(w, "ping"); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func writeUpdate(w *bufio.Writer, u streamUpdate) error {
	if u.err != nil {
		log.Printf("Error refreshing catalog stream: %v", u.err)
		return writeEvent(w, "error", fiber.Map{"message": userMessage(models.ErrFetchFailure)})
	}
	return writeEvent(w, "products", u.products)
}

func writeEvent(w *bufio.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}

func writeComment(w *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.Flush()
}
