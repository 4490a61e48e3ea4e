package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := ProductNotFound("p-1")
	wrapped := fmt.Errorf("create order: %w", err)

	assert.True(t, errors.Is(wrapped, ErrProductNotFound))
	assert.False(t, errors.Is(wrapped, ErrOrderNotFound))
	assert.Equal(t, "PRODUCT_NOT_FOUND: product not found: p-1", err.Error())
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(fmt.Errorf("x: %w", Validation("bad qty")))
	assert.True(t, ok)
	assert.Equal(t, CodeValidation, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithDetailsCopies(t *testing.T) {
	base := New(CodeInsufficientStock, "insufficient stock")
	d := base.WithDetails([]string{"p-1"})

	assert.Nil(t, base.Details)
	assert.Equal(t, []string{"p-1"}, d.Details)
	assert.True(t, errors.Is(d, ErrInsufficientStock))
}
