package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-checkout/internal/common"
)

// Repository is the persistence surface the catalog service depends on.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Product, error)
	GetByCode(ctx context.Context, code string) (Product, error)
	ListActive(ctx context.Context, query string, limit, offset int) ([]Product, int64, error)
}

// Service orchestrates catalog queries and caching.
type Service struct {
	repo         Repository
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repo         Repository
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query string
	Page  int
	Limit int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

type cachedList struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("catalog: repository is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{repo: cfg.Repo, cache: cfg.Cache, defaultLimit: defaultLimit, maxLimit: maxLimit}, nil
}

// ParseListParams normalises raw query values into list filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

// ListProducts returns active products with pagination metadata. Unfiltered pages
// are served from the cache when one is configured.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	offset := max((params.Page-1)*params.Limit, 0)
	load := func() (cachedList, error) {
		items, total, err := s.repo.ListActive(ctx, params.Query, params.Limit, offset)
		return cachedList{Items: items, Total: total}, err
	}

	var (
		page cachedList
		err  error
	)
	if params.Query == "" {
		page, err = remember(ctx, s.cache, fmt.Sprintf("products:p%d:l%d", params.Page, params.Limit), load)
	} else {
		page, err = load()
	}
	if err != nil {
		return ProductListResult{}, err
	}
	return ProductListResult{Items: page.Items, Total: page.Total, Page: params.Page, Limit: params.Limit}, nil
}

// ProductByID returns the product with the given catalog id.
func (s *Service) ProductByID(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

// ProductByCode returns the product with the given code.
func (s *Service) ProductByCode(ctx context.Context, code string) (Product, error) {
	return s.repo.GetByCode(ctx, code)
}

// Lookup resolves a public reference: numeric refs are tried as catalog ids first,
// then every ref is tried as a code. Inactive products are reported as not found.
func (s *Service) Lookup(ctx context.Context, ref string) (Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Product{}, common.InvalidInput("product reference is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		p, err := s.repo.GetByID(ctx, id)
		if err == nil && p.Active {
			return p, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Product{}, err
		}
	}
	p, err := s.repo.GetByCode(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, common.ProductNotFound(ref)
		}
		return Product{}, err
	}
	if !p.Active {
		return Product{}, common.ProductNotFound(ref)
	}
	return p, nil
}

func badRequest(field, message string, err error) error {
	appErr := common.NewAppError("INVALID_INPUT", message, http.StatusBadRequest, errors.Join(common.ErrInvalidInput, err))
	return appErr.WithDetails(map[string]any{"field": field})
}
