// Package checkout defines the checkout state machine and its failure taxonomy.
package checkout

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// Kind groups failure reasons
type Kind string

const (
	KindValidation  Kind = "ValidationError"
	KindAuth        Kind = "AuthError"
	KindPersistence Kind = "PersistenceError"
)

// Reason is the terminal failure code reported by a failed checkout
type Reason string

const (
	ReasonEmptyCart        Reason = "EMPTY_CART"
	ReasonNotAuthenticated Reason = "NOT_AUTHENTICATED"
	ReasonProductNotFound  Reason = "PRODUCT_NOT_FOUND"
	ReasonOutOfStock       Reason = "OUT_OF_STOCK"
	ReasonPersistence      Reason = "PERSISTENCE_ERROR"
)

// Kind returns the taxonomy group of the reason
func (r Reason) Kind() Kind {
	switch r {
	case ReasonNotAuthenticated:
		return KindAuth
	case ReasonEmptyCart, ReasonProductNotFound, ReasonOutOfStock:
		return KindValidation
	default:
		return KindPersistence
	}
}

// Error is a failed checkout. ProductID is set for PRODUCT_NOT_FOUND and OUT_OF_STOCK.
type Error struct {
	Reason    Reason
	ProductID uuid.UUID
	Err       error
}

// Sentinels for errors.Is. They match any Error with the same reason.
var (
	ErrEmptyCart        = &Error{Reason: ReasonEmptyCart}
	ErrNotAuthenticated = &Error{Reason: ReasonNotAuthenticated}
	ErrProductNotFound  = &Error{Reason: ReasonProductNotFound}
	ErrOutOfStock       = &Error{Reason: ReasonOutOfStock}
	ErrPersistence      = &Error{Reason: ReasonPersistence}
)

// EmptyCart returns an EMPTY_CART failure
func EmptyCart() *Error {
	return &Error{Reason: ReasonEmptyCart}
}

// NotAuthenticated returns a NOT_AUTHENTICATED failure
func NotAuthenticated() *Error {
	return &Error{Reason: ReasonNotAuthenticated}
}

// ProductNotFound returns a PRODUCT_NOT_FOUND failure for productID
func ProductNotFound(productID uuid.UUID) *Error {
	return &Error{Reason: ReasonProductNotFound, ProductID: productID}
}

// OutOfStock returns an OUT_OF_STOCK failure for productID
func OutOfStock(productID uuid.UUID) *Error {
	return &Error{Reason: ReasonOutOfStock, ProductID: productID}
}

// Persistence wraps a storage failure
func Persistence(err error) *Error {
	return &Error{Reason: ReasonPersistence, Err: err}
}

// Kind returns the taxonomy group
func (e *Error) Kind() Kind {
	return e.Reason.Kind()
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonEmptyCart:
		return "checkout failed: cart is empty"
	case ReasonNotAuthenticated:
		return "checkout failed: not authenticated"
	case ReasonProductNotFound:
		return fmt.Sprintf("checkout failed: product %s no longer exists", e.ProductID)
	case ReasonOutOfStock:
		return fmt.Sprintf("checkout failed: product %s is out of stock", e.ProductID)
	}
	if e.Err != nil {
		return "checkout failed: " + e.Err.Error()
	}
	return "checkout failed: " + string(e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same reason. A target carrying a
// ProductID must also match the product.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != e.Reason {
		return false
	}
	return t.ProductID == uuid.Nil || t.ProductID == e.ProductID
}

// As exposes the failure as a shared.DomainError so generic error handlers can map it.
func (e *Error) As(target any) bool {
	t, ok := target.(**shared.DomainError)
	if !ok {
		return false
	}
	*t = shared.NewDomainError(string(e.Reason), e.Error())
	return true
}
