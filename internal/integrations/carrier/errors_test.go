package carrier

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFromHTTPStatus(t *testing.T) {
	require.ErrorIs(t, FromHTTPStatus("ups", http.StatusUnauthorized), ErrAuthFailure)
	require.ErrorIs(t, FromHTTPStatus("ups", http.StatusForbidden), ErrAuthFailure)
	require.ErrorIs(t, FromHTTPStatus("ups", http.StatusTooManyRequests), ErrRateLimited)
	require.ErrorIs(t, FromHTTPStatus("ups", http.StatusServiceUnavailable), ErrTransport)
}

func TestError_WrappedKeepsKind(t *testing.T) {
	err := errors.Wrap(NewError("dhl", KindRateLimited, errors.New("http 429")), "fetch")
	require.ErrorIs(t, err, ErrRateLimited)
	require.NotErrorIs(t, err, ErrTransport)
	require.True(t, IsKind(err, KindRateLimited))
	require.False(t, IsKind(nil, KindRateLimited))
	require.Equal(t, "fetch: dhl: rate_limited: http 429", err.Error())
}
