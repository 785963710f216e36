// Package product describes the sellable catalog.
package product

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Category and TenantID are what combo scope
// filters match on.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	TenantID string
	// Variants lists selectable variant keys such as sizes or flavours.
	Variants []string
	Image    Image
}

// AcceptsVariant reports whether a cart line may pick variant. Products
// without declared variants accept any key as a free-form label.
func (p *Product) AcceptsVariant(variant string) bool {
	return variant == "" || len(p.Variants) == 0 || slices.Contains(p.Variants, variant)
}

// Image holds per-breakpoint image paths.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products found among ids in any order; missing
	// ids are simply absent.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
