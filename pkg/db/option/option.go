package option

import (
	"fmt"
	"strings"

	"smallbiznis-points/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a query before it is executed by the repository.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ     Operator = "="
	NEQ    Operator = "<>"
	GT     Operator = ">"
	GTE    Operator = ">="
	LT     Operator = "<"
	LTE    Operator = "<="
	IN     Operator = "IN"
	ISNULL Operator = "IS NULL"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// ApplyOperator adds a WHERE clause for a single column comparison.
func ApplyOperator(cond Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := clause.Column{Name: cond.Field}
		switch cond.Operator {
		case ISNULL:
			return db.Where(clause.Expr{SQL: "? IS NULL", Vars: []any{column}})
		case IN:
			return db.Where(clause.IN{Column: column, Values: toValues(cond.Value)})
		case EQ, NEQ, GT, GTE, LT, LTE:
			return db.Where(clause.Expr{SQL: fmt.Sprintf("? %s ?", cond.Operator), Vars: []any{column, cond.Value}})
		default:
			_ = db.AddError(fmt.Errorf("unsupported operator %q", cond.Operator))
			return db
		}
	}
}

func toValues(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, 0, len(vs))
		for _, s := range vs {
			out = append(out, s)
		}
		return out
	default:
		return []any{v}
	}
}

// WithSortBy orders results. Columns outside Allow are ignored when Allow is set.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" {
			column = "id"
		}
		if sort.Allow != nil && !sort.Allow[column] {
			return db
		}
		desc := strings.EqualFold(sort.OrderBy, "desc")
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}
}

// ApplyPagination limits the result set and continues after the cursor id.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if p.Cursor != "" {
			if cursor, err := pagination.DecodeCursor(p.Cursor); err == nil && cursor.ID != "" {
				db = db.Where(clause.Expr{SQL: "? > ?", Vars: []any{clause.Column{Name: "id"}, cursor.ID}})
			}
		}
		if p.Limit > 0 {
			db = db.Limit(p.Limit)
		}
		return db
	}
}

// LockingUpdate is a scope issuing SELECT ... FOR UPDATE on dialects that support it.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}
