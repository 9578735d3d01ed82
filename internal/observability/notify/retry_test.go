package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 1, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	require.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestRetry_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Retry(ctx, 5, func(context.Context) error {
		cancel()
		return errors.New("down")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestResponseError_IncludesBody(t *testing.T) {
	resp := &http.Response{Status: "400 Bad Request", Body: io.NopCloser(strings.NewReader(" invalid_payload \n"))}
	err := ResponseError(resp, "slack webhook")
	require.EqualError(t, err, "slack webhook 400 Bad Request: invalid_payload")
}

func TestSinkFunc_NilIsNoop(t *testing.T) {
	var f SinkFunc
	assert.NoError(t, f.SendReport(context.Background(), ReportPayload{}))
}
