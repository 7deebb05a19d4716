// Package option provides composable gorm query options for the generic
// repository.
package option

import "gorm.io/gorm"

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type operatorOption struct {
	cond Condition
}

func (o operatorOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(o.cond.Field+" "+string(o.cond.Operator)+" ?", o.cond.Value)
}

// ApplyOperator adds a field/operator/value predicate to the query.
func ApplyOperator(cond Condition) QueryOption {
	return operatorOption{cond: cond}
}

type isNullOption struct {
	field string
	null  bool
}

func (o isNullOption) Apply(db *gorm.DB) *gorm.DB {
	if o.null {
		return db.Where(o.field + " IS NULL")
	}
	return db.Where(o.field + " IS NOT NULL")
}

// WithNull constrains field to be NULL (null=true) or NOT NULL (null=false).
func WithNull(field string, null bool) QueryOption {
	return isNullOption{field: field, null: null}
}

type orderOption struct {
	expr string
}

func (o orderOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.expr)
}

// WithOrder applies an ORDER BY expression.
func WithOrder(expr string) QueryOption {
	return orderOption{expr: expr}
}

type limitOption struct {
	n int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	if o.n <= 0 {
		return db
	}
	return db.Limit(o.n)
}

// WithLimit caps the number of returned rows.
func WithLimit(n int) QueryOption {
	return limitOption{n: n}
}
