package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"etalase/internal/changefeed"
	"etalase/internal/models"
)

// ProductLister is the read side of the product store.
type ProductLister interface {
	List(ctx context.Context) ([]models.Product, error)
}

// ChangeSource lists products and notifies about changes to them.
type ChangeSource interface {
	ProductLister
	SubscribeToChanges(handler func()) *changefeed.Subscription
}

// CatalogConfig controls how inquiry links and prices are rendered.
type CatalogConfig struct {
	WhatsAppPhone  string
	CurrencySymbol string
}

// Catalog builds the public product listing.
type Catalog struct {
	store ProductLister
	cfg   CatalogConfig
}

func NewCatalog(store ProductLister, cfg CatalogConfig) *Catalog {
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "₹"
	}
	return &Catalog{store: store, cfg: cfg}
}

// CatalogState is the result of one load. Err is set instead of leaving the
// page in a loading state forever.
type CatalogState struct {
	Products []models.Product
	Loading  bool
	Err      error
}

// Load fetches the full product list once.
func (c *Catalog) Load(ctx context.Context) CatalogState {
	products, err := c.store.List(ctx)
	if err != nil {
		log.Printf("Error fetching catalog: %v", err)
		return CatalogState{Err: err}
	}
	return CatalogState{Products: products}
}

// Filter keeps the products whose name contains q, ignoring case. An empty
// query keeps everything. The input slice is not modified.
func Filter(products []models.Product, q string) []models.Product {
	if q == "" {
		return products
	}
	q = strings.ToLower(q)
	matched := make([]models.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Listing is one product card on the catalog page.
type Listing struct {
	Product       models.Product
	PriceLabel    string
	InquiryURL    string
	OrderDisabled bool
}

// Listings builds the cards for products. Out-of-stock products keep their
// card but the order action is disabled.
func (c *Catalog) Listings(products []models.Product, pageURL string) []Listing {
	listings := make([]Listing, 0, len(products))
	for _, p := range products {
		listings = append(listings, Listing{
			Product:       p,
			PriceLabel:    c.PriceLabel(p),
			InquiryURL:    c.InquiryLink(p, pageURL),
			OrderDisabled: !p.InStock,
		})
	}
	return listings
}

func (c *Catalog) PriceLabel(p models.Product) string {
	return c.cfg.CurrencySymbol + p.Price.StringFixed(2)
}

// InquiryMessage is the prefilled text sent with an order inquiry.
func (c *Catalog) InquiryMessage(p models.Product, pageURL string) string {
	var b strings.Builder
	b.WriteString("🛒 *Product Inquiry*\n\n")
	fmt.Fprintf(&b, "📌 *Name:* %s\n", p.Name)
	fmt.Fprintf(&b, "💰 *Price:* %s\n", c.PriceLabel(p))
	fmt.Fprintf(&b, "📖 *Description:* %s\n", p.Description)
	if p.ImageURL != "" {
		fmt.Fprintf(&b, "🖼 *Image:* %s\n", p.ImageURL)
	}
	fmt.Fprintf(&b, "🔗 *Product Link:* %s", pageURL)
	return b.String()
}

// InquiryLink returns the wa.me deep link carrying InquiryMessage.
func (c *Catalog) InquiryLink(p models.Product, pageURL string) string {
	text := strings.ReplaceAll(url.QueryEscape(c.InquiryMessage(p, pageURL)), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", digitsOnly(c.cfg.WhatsAppPhone), text)
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// LiveCatalog re-runs List on every change notification and hands the result
// to sink. After Close returns, sink is never called again, even if a fetch
// was in flight.
type LiveCatalog struct {
	store  ChangeSource
	sink   func([]models.Product, error)
	ctx    context.Context
	cancel context.CancelFunc
	sub    *changefeed.Subscription

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// NewLiveCatalog subscribes to changes. sink must not call Close.
func NewLiveCatalog(parent context.Context, store ChangeSource, sink func([]models.Product, error)) *LiveCatalog {
	ctx, cancel := context.WithCancel(parent)
	l := &LiveCatalog{
		store:  store,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
	}
	l.sub = store.SubscribeToChanges(l.Refresh)
	return l
}

// Refresh fetches the list now and delivers it unless the view is closed.
func (l *LiveCatalog) Refresh() {
	products, err := l.store.List(l.ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.sink(products, err)
}

// Close cancels in-flight fetches and unsubscribes exactly once.
func (l *LiveCatalog) Close() {
	l.once.Do(func() {
		l.cancel()
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		l.sub.Unsubscribe()
	})
}
