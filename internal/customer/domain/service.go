package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("customer_not_found")
	ErrInvalidEmail = errors.New("invalid_email")
)

type ResolveRequest struct {
	Email           string
	Name            string
	ExternalPayerID string
	Currency        string
}

type Service interface {
	// WithTx returns a copy of the service bound to the given transaction.
	WithTx(tx *gorm.DB) Service

	// ResolveOrCreate returns the customer with the given email, creating
	// it when absent. Concurrent creation races collapse onto the winner.
	ResolveOrCreate(ctx context.Context, req ResolveRequest) (*Customer, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Customer, error)
}
