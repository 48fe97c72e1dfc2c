package middleware

import (
	"fmt"

	"github.com/Harry808275/evertrust23-sub000/internal/auth"
)

type Mid struct {
	keys *auth.Keys
}

func NewMid(keys *auth.Keys) (*Mid, error) {
	if keys == nil {
		return nil, fmt.Errorf("keys is nil")
	}
	return &Mid{keys: keys}, nil
}
