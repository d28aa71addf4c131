package errors_test

import (
	"errors"
	"testing"

	errorutils "github.com/ordana/payments/libs/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")
	err := errorutils.Wrap(cause, "operation failed")

	assert.Equal(t, "operation failed", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestErrorBundle_Data(t *testing.T) {
	data := map[string]string{"orderID": "ORD-1"}
	err := errorutils.New(errorutils.ErrGatewayUnavailable, "charge failed", data)

	var bundle *errorutils.ErrorBundle
	assert.True(t, errors.As(err, &bundle))
	assert.Equal(t, data, bundle.Data())
	assert.True(t, errors.Is(err, errorutils.ErrGatewayUnavailable))
	assert.Contains(t, bundle.DataToString(), "ORD-1")
}
