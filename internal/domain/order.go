package domain

import "strings"

// Order is a list sort directive: a field name with an optional leading
// "-" for descending. The zero value means the operation's default
// ordering.
type Order struct {
	Field string
	Desc  bool
}

func (o Order) IsZero() bool { return o.Field == "" }

// ParseOrder splits the "-field" prefix syntax.
func ParseOrder(s string) Order {
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		return Order{Field: rest, Desc: true}
	}
	return Order{Field: s}
}
