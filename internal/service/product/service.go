package product

import (
	"context"
	"sort"

	"marketplace-core/internal/domain"
	productrepo "marketplace-core/internal/repository/product"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

type ListInput struct {
	StoreID    string
	ActiveOnly bool
	Limit      int
	Offset     int
}

func (s *Service) List(ctx context.Context, in ListInput) ([]domain.Product, error) {
	f := productrepo.Filter{ActiveOnly: in.ActiveOnly, Limit: in.Limit, Offset: in.Offset}
	if in.StoreID != "" {
		f.StoreIDs = []string{in.StoreID}
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Product{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// LowStock lists the store's products whose own or variant stock is low,
// ordered by id.
func (s *Service) LowStock(ctx context.Context, storeID string) ([]domain.Product, error) {
	f := productrepo.Filter{}
	if storeID != "" {
		f.StoreIDs = []string{storeID}
	}
	all, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := []domain.Product{}
	for _, p := range all {
		if p.IsLowStock() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
