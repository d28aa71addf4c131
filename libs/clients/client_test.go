package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ordana/payments/libs/errors"
	"github.com/stretchr/testify/assert"
)

func TestDo_ErrorWithResponse(t *testing.T) {
	errorMsg := "this is not json"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(errorMsg))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	assert.NoError(t, err)

	client, err := New(ts.URL, "")
	assert.NoError(t, err)

	// pass data as invalid result type to cause error
	var data *string
	response, err := client.Do(context.Background(), req, data)

	assert.IsType(t, &errors.ErrorBundle{}, err)
	assert.NotNil(t, response)

	actual := err.(*errors.ErrorBundle)
	assert.Equal(t, "response", actual.Error())
	assert.NotNil(t, actual.Cause(), ErrUnableToDecode)

	httpState := actual.Data().(HTTPState)
	assert.Equal(t, httpState.Status, http.StatusOK)
	assert.Equal(t, ts.URL, httpState.Path)
	assert.Contains(t, fmt.Sprintf("+%v", httpState.Body), errorMsg)
}

func TestDo_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"downstream broke"}`))
	}))
	defer ts.Close()

	client, err := New(ts.URL, "")
	assert.NoError(t, err)

	req, err := client.NewRequest(context.Background(), http.MethodGet, "/", nil, nil)
	assert.NoError(t, err)

	resp, err := client.Do(context.Background(), req, nil)
	assert.Error(t, err)
	assert.NotNil(t, resp)

	actual := err.(*errors.ErrorBundle)
	httpState := actual.Data().(HTTPState)
	assert.Equal(t, http.StatusServiceUnavailable, httpState.Status)
}

func TestNewRequest_SetsAuthorization(t *testing.T) {
	client, err := New("https://api.example.com", "c2VydmVyLWtleTo=")
	assert.NoError(t, err)

	req, err := client.NewRequest(context.Background(), http.MethodPost, "/v2/charge", map[string]string{"a": "b"}, nil)
	assert.NoError(t, err)

	assert.Equal(t, "Basic c2VydmVyLWtleTo=", req.Header.Get("authorization"))
	assert.Equal(t, "application/json", req.Header.Get("content-type"))
}
