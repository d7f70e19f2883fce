package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/fjod/qahwa-storefront/internal/projection"
	"github.com/fjod/qahwa-storefront/internal/repository"
)

// View is the filtered product list together with the criteria that produced it.
type View struct {
	Criteria Criteria         `json:"criteria"`
	Products []domain.Product `json:"products"`
}

type Service struct {
	repo repository.ProductRepository
	hub  *projection.Hub[View]
	log  *slog.Logger
}

func NewService(repo repository.ProductRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		hub:  projection.NewHub[View](),
		log:  log,
	}
}

// ListProducts loads the in-stock catalog and applies c to it.
func (s *Service) ListProducts(ctx context.Context, c Criteria) ([]domain.Product, error) {
	var (
		products []domain.Product
		err      error
	)
	if category := c.categoryFilter(); category != "" {
		products, err = s.repo.ListInStockProductsByCategory(ctx, category)
	} else {
		products, err = s.repo.ListInStockProducts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return Filter(products, c), nil
}

// Apply lists products for c and publishes the result to watchers.
func (s *Service) Apply(ctx context.Context, c Criteria) (View, error) {
	products, err := s.ListProducts(ctx, c)
	if err != nil {
		return View{}, err
	}

	view := View{Criteria: c, Products: products}
	s.hub.Publish(view)
	s.log.DebugContext(ctx, "catalog filter applied",
		slog.String("category", c.Category),
		slog.String("search", c.Search),
		slog.Int("count", len(products)))
	return view, nil
}

// GetProduct returns nil when no product has that id.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Watch subscribes to the filtered product list. When no filter has been
// applied yet the unfiltered catalog is published first, so the channel never
// starts out empty.
func (s *Service) Watch(ctx context.Context) (<-chan View, func(), error) {
	if _, ok := s.hub.Latest(); !ok {
		if _, err := s.Apply(ctx, Criteria{}); err != nil {
			return nil, nil, err
		}
	}
	ch, cancel := s.hub.Subscribe()
	return ch, cancel, nil
}

func (s *Service) Close() {
	s.hub.Close()
}
