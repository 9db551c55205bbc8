package client

import (
	"fmt"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

type userEnvelope struct {
	User *domain.User `json:"user"`
}

func (e *userEnvelope) Validate() error {
	if e.User == nil {
		return fmt.Errorf("%w: user is missing", domain.ErrInvalid)
	}
	return e.User.Validate()
}

type productsEnvelope struct {
	Products []domain.Product `json:"products"`
}

func (e *productsEnvelope) Validate() error {
	for i := range e.Products {
		if err := e.Products[i].Validate(); err != nil {
			return fmt.Errorf("products[%d]: %w", i, err)
		}
	}
	return nil
}

type productEnvelope struct {
	Product *domain.Product `json:"product"`
}

func (e *productEnvelope) Validate() error {
	if e.Product == nil {
		return fmt.Errorf("%w: product is missing", domain.ErrInvalid)
	}
	return e.Product.Validate()
}

type ordersEnvelope struct {
	Orders []domain.Order `json:"orders"`
}

func (e *ordersEnvelope) Validate() error {
	for i := range e.Orders {
		if err := e.Orders[i].Validate(); err != nil {
			return fmt.Errorf("orders[%d]: %w", i, err)
		}
	}
	return nil
}

type orderEnvelope struct {
	Order *domain.Order `json:"order"`
}

func (e *orderEnvelope) Validate() error {
	if e.Order == nil {
		return fmt.Errorf("%w: order is missing", domain.ErrInvalid)
	}
	return e.Order.Validate()
}
