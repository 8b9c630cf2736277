package apperr

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"record not found", gorm.ErrRecordNotFound, CategoryNotFound},
		{"wrapped not found", errors.New("user lookup: record not found"), CategoryNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, CategoryValidation},
		{"fk violation", &pgconn.PgError{Code: "23503"}, CategoryValidation},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, CategoryServer},
		{"timeout", errors.New("dial tcp: i/o timeout"), CategoryNetwork},
		{"refused", errors.New("connection refused"), CategoryNetwork},
		{"auth", errors.New("invalid credentials"), CategoryAuth},
		{"rate limit", errors.New("rate limit exceeded"), CategoryRateLimit},
		{"duplicate", errors.New("duplicate key value"), CategoryValidation},
		{"unknown", errors.New("something broke"), CategoryServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(CategoryNetwork))
	for _, cat := range []Category{CategoryAuth, CategoryValidation, CategoryServer, CategoryNotFound, CategoryRateLimit} {
		assert.False(t, Retryable(cat), "category %s must not be retryable", cat)
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 401, HTTPStatus(CategoryAuth))
	assert.Equal(t, 400, HTTPStatus(CategoryValidation))
	assert.Equal(t, 503, HTTPStatus(CategoryNetwork))
	assert.Equal(t, 500, HTTPStatus(CategoryServer))
	assert.Equal(t, 404, HTTPStatus(CategoryNotFound))
	assert.Equal(t, 429, HTTPStatus(CategoryRateLimit))
}
