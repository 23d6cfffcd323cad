package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindQuota:      http.StatusBadRequest,
		KindState:      http.StatusBadRequest,
		KindStock:      http.StatusBadRequest,
		KindNotFound:   http.StatusNotFound,
		KindDownstream: http.StatusInternalServerError,
		KindInternal:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), kind.String())
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	cause := errors.New("conditional check failed")
	err := fmt.Errorf("commit: %w", Stock("Insufficient stock for the flash sale", cause))

	assert.Equal(t, KindStock, KindOf(err))
	assert.True(t, Is(err, KindStock))
	assert.False(t, Is(err, KindQuota))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Insufficient stock for the flash sale", PublicMessage(err))
}

func TestPublicMessage_HidesUnclassified(t *testing.T) {
	err := errors.New("dynamodb: connection reset by peer")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal server error", PublicMessage(err))
}

func TestPublicMessage_HidesInternalLabels(t *testing.T) {
	cause := errors.New("ResourceNotFoundException: products")
	assert.Equal(t, MsgInternal, PublicMessage(Internal("load product", cause)))
	assert.Equal(t, MsgInternal, PublicMessage(fmt.Errorf("purchase: %w", Internal("decrement stock", cause))))
	assert.Equal(t, MsgInternal, PublicMessage(Downstream("payment service returned 502", cause)))
	assert.Equal(t, "Product not found", PublicMessage(NotFound("Product not found")))
}
