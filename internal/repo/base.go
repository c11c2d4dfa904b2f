// Package repo holds the plumbing shared by the catalog and sales
// repositories: transaction binding and mapping gorm failures to typed codes.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
)

// Base is embedded by domain repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// WithTx rebinds the repository to tx. A nil tx keeps the current binding.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the bound connection carrying ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// First loads one row into dest. A missing row is NOT_FOUND ("<what> not
// found"); any other failure is a DEPENDENCY_ERROR.
func (b Base) First(ctx context.Context, dest any, what string, conds ...any) error {
	err := b.DB(ctx).First(dest, conds...).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return Fail(err, "load "+what)
}

// Fail wraps a storage error as DEPENDENCY_ERROR, labelled with op. Nil stays nil.
func Fail(err error, op string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: "+op)
}
