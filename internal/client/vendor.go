package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/skuwatch/internal/headers"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrMalformedResponse = errors.New("malformed response")
	ErrIncompleteCatalog = errors.New("catalog page limit reached")
)

const (
	EndpointCatalog   = "catalog"
	EndpointInventory = "inventory"
)

// Observer receives the outcome of every vendor request.
type Observer interface {
	ObserveRequest(ctx context.Context, endpoint string, d time.Duration, err error)
}

type VendorConfig struct {
	InventoryURL string
	CatalogURL   string
	StoreURL     string
	Locale       string
	Manufacturer string
	PageLimit    int
	MaxPages     int
}

// Vendor talks to the vendor's catalog lookup and inventory APIs.
type Vendor struct {
	cfg      VendorConfig
	doer     Doer
	log      *slog.Logger
	observer Observer
	origin   string

	statusMu   sync.Mutex
	prevStatus int
}

type VendorOption func(*Vendor)

func WithObserver(o Observer) VendorOption {
	return func(v *Vendor) { v.observer = o }
}

func WithLogger(l *slog.Logger) VendorOption {
	return func(v *Vendor) { v.log = l }
}

func NewVendor(cfg VendorConfig, doer Doer, opts ...VendorOption) *Vendor {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	v := &Vendor{
		cfg:  cfg,
		doer: doer,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With("component", "vendor")
	if u, err := url.Parse(cfg.StoreURL); err == nil && u.Scheme != "" && u.Host != "" {
		v.origin = u.Scheme + "://" + u.Host
	}
	return v
}

type catalogResponse struct {
	SearchedProducts *struct {
		TotalProducts  int `json:"totalProducts"`
		ProductDetails []struct {
			ProductSKU  string `json:"productSKU"`
			DisplayName string `json:"displayName"`
		} `json:"productDetails"`
	} `json:"searchedProducts"`
}

type inventoryResponse struct {
	ListMap *[]inventoryItem `json:"listMap"`
}

type inventoryItem struct {
	FeSKU      flexString `json:"fe_sku"`
	IsActive   flexString `json:"is_active"`
	Price      flexString `json:"price"`
	ProductURL flexString `json:"product_url"`
}

// flexString accepts a JSON string, number or bool and keeps its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*f = flexString(strings.TrimSpace(string(raw)))
	return nil
}

// FetchCatalog walks the paged catalog listing and returns every entry.
func (v *Vendor) FetchCatalog(ctx context.Context) (model.Catalog, error) {
	const op = "client.FetchCatalog"

	var entries []model.CatalogEntry
	complete := false
	for page := 1; page <= v.cfg.MaxPages; page++ {
		q := url.Values{}
		q.Set("locale", v.cfg.Locale)
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(v.cfg.PageLimit))
		if v.cfg.Manufacturer != "" {
			q.Set("manufacturer", v.cfg.Manufacturer)
		}

		var resp catalogResponse
		if err := v.getJSON(ctx, EndpointCatalog, v.cfg.CatalogURL, q, &resp); err != nil {
			return model.Catalog{}, fmt.Errorf("%s: page %d: %w", op, page, err)
		}
		if resp.SearchedProducts == nil {
			return model.Catalog{}, fmt.Errorf("%s: page %d: %w: missing searchedProducts", op, page, ErrMalformedResponse)
		}

		details := resp.SearchedProducts.ProductDetails
		for _, d := range details {
			entries = append(entries, model.CatalogEntry{
				SKU:         strings.TrimSpace(d.ProductSKU),
				DisplayName: strings.TrimSpace(d.DisplayName),
			})
		}

		total := resp.SearchedProducts.TotalProducts
		if len(details) < v.cfg.PageLimit || (total > 0 && len(entries) >= total) {
			complete = true
			break
		}
	}
	// a partial catalog would report every product past the limit as gone
	if !complete {
		return model.Catalog{}, fmt.Errorf("%s: %w: %d pages, %d entries", op, ErrIncompleteCatalog, v.cfg.MaxPages, len(entries))
	}

	catalog := model.NewCatalog(entries)
	v.log.Debug("catalog fetched", "entries", catalog.Len())
	return catalog, nil
}

// FetchStock queries the inventory API for one SKU. A nil observation with a
// nil error means the vendor does not track the SKU right now.
func (v *Vendor) FetchStock(ctx context.Context, sku string) (*model.StockObservation, error) {
	const op = "client.FetchStock"

	q := url.Values{}
	q.Set("locale", v.cfg.Locale)
	q.Set("skus", sku)

	var resp inventoryResponse
	if err := v.getJSON(ctx, EndpointInventory, v.cfg.InventoryURL, q, &resp); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, sku, err)
	}
	if resp.ListMap == nil {
		return nil, fmt.Errorf("%s: %s: %w: missing listMap", op, sku, ErrMalformedResponse)
	}
	if len(*resp.ListMap) == 0 {
		return nil, nil
	}

	item := (*resp.ListMap)[0]
	obs := &model.StockObservation{
		SKU:        sku,
		IsActive:   strings.EqualFold(strings.TrimSpace(string(item.IsActive)), "true"),
		Price:      string(item.Price),
		ProductURL: strings.TrimSpace(string(item.ProductURL)),
	}
	if s := strings.TrimSpace(string(item.FeSKU)); s != "" {
		obs.SKU = s
	}
	if obs.ProductURL == "" {
		obs.ProductURL = v.cfg.StoreURL
	}
	return obs, nil
}

func (v *Vendor) getJSON(ctx context.Context, endpoint, base string, q url.Values, out any) (err error) {
	start := time.Now()
	if v.observer != nil {
		defer func() { v.observer.ObserveRequest(ctx, endpoint, time.Since(start), err) }()
	}

	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	merged := u.Query()
	for k, vals := range q {
		merged[k] = vals
	}
	u.RawQuery = merged.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header = headers.BuildHeaders(v.origin, v.cfg.StoreURL)

	resp, err := v.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	v.trackStatus(resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, sample(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		v.log.Debug("json parse error", "endpoint", endpoint, "error", err, "sample", sample(body))
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// trackStatus regenerates the header profiles when a previously healthy
// endpoint starts refusing requests.
func (v *Vendor) trackStatus(code int) {
	v.statusMu.Lock()
	defer v.statusMu.Unlock()

	if code != http.StatusOK && v.prevStatus == http.StatusOK {
		v.log.Info("non-200 after a 200 response, regenerating header profiles", "status", code)
		headers.ResetProfilePool()
		go headers.InitProfilePool(50)
	}
	v.prevStatus = code
}

func sample(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
