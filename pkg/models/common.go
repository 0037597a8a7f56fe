// Package models contains domain types for ekaya-docs.
package models

import (
	"fmt"
	"strings"
)

// Paging limits for list operations.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Sort directions accepted by list operations.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListOptions carries the paging and ordering parameters of a list call.
type ListOptions struct {
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
	OrderBy        string `json:"orderBy,omitempty"`
	OrderDirection string `json:"orderDirection,omitempty"`
}

// Normalize fills defaults and validates the options against the sortable
// fields of one entity. defaultOrder is used when OrderBy is empty.
func (o ListOptions) Normalize(defaultOrder string, sortable ...string) (ListOptions, error) {
	if o.Limit < 0 || o.Offset < 0 {
		return o, fmt.Errorf("limit and offset must not be negative")
	}
	if o.Limit == 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}

	if o.OrderBy == "" {
		o.OrderBy = defaultOrder
	}
	allowed := false
	for _, field := range sortable {
		if field == o.OrderBy {
			allowed = true
			break
		}
	}
	if !allowed {
		return o, fmt.Errorf("cannot order by %q (allowed: %s)", o.OrderBy, strings.Join(sortable, ", "))
	}

	o.OrderDirection = strings.ToLower(o.OrderDirection)
	switch o.OrderDirection {
	case "":
		o.OrderDirection = OrderAsc
	case OrderAsc, OrderDesc:
	default:
		return o, fmt.Errorf("orderDirection must be %q or %q", OrderAsc, OrderDesc)
	}

	return o, nil
}

// Bounded returns o with the limit defaulted and capped the way Normalize
// does, without validating the ordering fields.
func (o ListOptions) Bounded() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Page is the response shape of every list operation.
type Page[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage builds a Page and guarantees Data is never nil.
func NewPage[T any](data []T, total int, opts ListOptions) *Page[T] {
	if data == nil {
		data = []T{}
	}
	return &Page[T]{Data: data, Total: total, Limit: opts.Limit, Offset: opts.Offset}
}
