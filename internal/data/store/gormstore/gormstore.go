// Package gormstore implements the Store contract over a gorm database. Every
// unit of work is a database transaction; Cart.Items is never written as an
// association.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/cartledger/internal/data/store"
	"github.com/yungbote/cartledger/internal/domain/aggregates"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{db: db, log: log.With("store", "gorm")}
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Open(ctx context.Context) (store.UnitOfWork, error) {
	if s == nil || s.db == nil {
		return nil, store.ErrStoreClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	u := &unitOfWork{id: uuid.NewString(), tx: tx, log: s.log, active: true}
	s.log.Debug("unit of work opened", "uow", u.id)
	return u, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type unitOfWork struct {
	id     string
	tx     *gorm.DB
	log    *logger.Logger
	active bool
	closed bool
}

func (u *unitOfWork) ID() string   { return u.id }
func (u *unitOfWork) Active() bool { return u.active }

func (u *unitOfWork) Get(dest any, id int64) (bool, error) {
	if !u.active {
		return false, store.ErrUnitOfWorkDone
	}
	switch d := dest.(type) {
	case *carts.Cart:
		*d = carts.Cart{}
	case *carts.Item:
		*d = carts.Item{}
	default:
		return false, fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, dest)
	}
	err := u.tx.Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *unitOfWork) Save(entity any) error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	switch e := entity.(type) {
	case *carts.Cart:
		if e == nil {
			return fmt.Errorf("%w: nil cart", store.ErrUnsupportedEntity)
		}
	case *carts.Item:
		if e == nil {
			return fmt.Errorf("%w: nil item", store.ErrUnsupportedEntity)
		}
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, entity)
	}
	return u.tx.Omit(clause.Associations).Save(entity).Error
}

func (u *unitOfWork) Remove(entity any) error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	switch e := entity.(type) {
	case *carts.Cart:
		if e.Transient() {
			return store.ErrTransientEntity
		}
		return u.tx.Where("id = ?", e.ID).Delete(&carts.Cart{}).Error
	case *carts.Item:
		if e.Transient() {
			return store.ErrTransientEntity
		}
		return u.tx.Where("id = ?", e.ID).Delete(&carts.Item{}).Error
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, entity)
	}
}

func (u *unitOfWork) Query(dest any, p store.Predicate) error {
	const op = "store.gorm.Query"
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	var known func(string) bool
	switch dest.(type) {
	case *[]*carts.Cart:
		known = func(col string) bool { _, ok := (&carts.Cart{}).Column(col); return ok }
	case *[]*carts.Item:
		known = func(col string) bool { _, ok := (&carts.Item{}).Column(col); return ok }
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, dest)
	}
	if err := p.Validate(known); err != nil {
		return aggregates.ConstraintViolation(op, err.Error())
	}
	q := u.tx
	if exprs := expressions(p, u.tx.Dialector.Name()); len(exprs) > 0 {
		q = q.Clauses(exprs...)
	}
	return q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).Find(dest).Error
}

func (u *unitOfWork) Commit() error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	u.active = false
	if err := u.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	u.log.Debug("unit of work committed", "uow", u.id)
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	u.active = false
	if err := u.tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	u.log.Debug("unit of work rolled back", "uow", u.id)
	return nil
}

func (u *unitOfWork) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if u.active {
		return u.Rollback()
	}
	return nil
}

// expressions renders p for dialect. LIKE stays case-sensitive with no escape
// character: sqlite gets an equivalent GLOB, postgres disables the default
// backslash escape.
func expressions(p store.Predicate, dialect string) []clause.Expression {
	out := make([]clause.Expression, 0, len(p))
	for _, c := range p {
		col := clause.Column{Name: c.Column}
		switch c.Op {
		case store.OpEq:
			out = append(out, clause.Eq{Column: col, Value: c.Value})
		case store.OpNe:
			out = append(out, clause.Neq{Column: col, Value: c.Value})
		case store.OpLike:
			out = append(out, likeExpr(col, c.Value.(string), dialect))
		case store.OpIsNull:
			out = append(out, clause.Eq{Column: col, Value: nil})
		case store.OpNotNull:
			out = append(out, clause.Neq{Column: col, Value: nil})
		}
	}
	return out
}

func likeExpr(col clause.Column, pattern, dialect string) clause.Expression {
	switch dialect {
	case "sqlite":
		return clause.Expr{SQL: "? GLOB ?", Vars: []any{col, likeToGlob(pattern)}}
	case "postgres":
		return clause.Expr{SQL: "? LIKE ? ESCAPE ''", Vars: []any{col, pattern}}
	default:
		return clause.Like{Column: col, Value: pattern}
	}
}

// likeToGlob maps % and _ to * and ? and brackets GLOB metacharacters so they
// match literally.
func likeToGlob(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteByte('*')
		case '_':
			b.WriteByte('?')
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
