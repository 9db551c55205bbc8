package shoptest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

// SeedProducts returns the default catalog. IDs are stable so tests and
// manual sessions can refer to them.
func SeedProducts() []domain.Product {
	created := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	stock := func(n int) *int { return &n }
	return []domain.Product{
		{
			ID:          "tee-classic",
			Title:       "Classic Tee",
			Description: "Heavyweight cotton t-shirt.",
			Price:       decimal.RequireFromString("25.00"),
			Type:        domain.ProductPhysical,
			Stock:       stock(40),
			Sizes:       []string{"S", "M", "L", "XL"},
			Colors:      []string{"black", "white"},
			Images:      []domain.Image{{URL: "https://img.shoptest.invalid/tee.jpg"}},
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		{
			ID:          "mug-enamel",
			Title:       "Enamel Mug",
			Description: "Camp mug, 350 ml.",
			Price:       decimal.RequireFromString("12.50"),
			Type:        domain.ProductPhysical,
			Stock:       stock(15),
			Images:      []domain.Image{{URL: "https://img.shoptest.invalid/mug.jpg"}},
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		{
			ID:          "poster-dunes",
			Title:       "Dunes Poster",
			Description: "Limited print, A2.",
			Price:       decimal.RequireFromString("40.00"),
			Type:        domain.ProductPhysical,
			Stock:       stock(2),
			Images:      []domain.Image{{URL: "https://img.shoptest.invalid/poster.jpg"}},
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		{
			ID:          "ebook-go",
			Title:       "Field Guide to Go",
			Description: "Digital download, PDF and EPUB.",
			Price:       decimal.RequireFromString("9.99"),
			Type:        domain.ProductDigital,
			File:        &domain.Image{URL: "https://files.shoptest.invalid/guide.zip"},
			Images:      []domain.Image{{URL: "https://img.shoptest.invalid/guide.jpg"}},
			CreatedAt:   created,
			UpdatedAt:   created,
		},
	}
}
