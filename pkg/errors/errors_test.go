package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTransport = fmt.Errorf("connection refused")

func TestClassify(t *testing.T) {
	t.Run("matches_kind_and_cause", func(t *testing.T) {
		err := Classify(ErrUpstreamUnavailable, errTransport)
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
		require.ErrorIs(t, err, errTransport)
		require.NotErrorIs(t, err, ErrUpstreamProtocol)
	})

	t.Run("nil_cause_yields_kind", func(t *testing.T) {
		require.Equal(t, ErrNotFound, Classify(ErrNotFound, nil))
	})

	t.Run("already_classified_is_unchanged", func(t *testing.T) {
		err := ItemNotFoundError("/a/b.json", "1")
		require.Equal(t, err, Classify(ErrNotFound, err))
	})
}

func TestUpstreamErrors(t *testing.T) {
	err := UpstreamProtocolError("retrieving page 42", errTransport)
	require.ErrorIs(t, err, ErrUpstreamProtocol)
	require.ErrorIs(t, err, errTransport)

	var dxaErr *DxaError
	require.True(t, errors.As(err, &dxaErr))
	require.Equal(t, "retrieving page 42", dxaErr.Msg)
	require.Contains(t, err.Error(), "connection refused")

	err = UpstreamUnavailableError("retrieving sitemap", errTransport)
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.NotErrorIs(t, err, ErrUpstreamProtocol)
}

func TestInvalidEntityIDError(t *testing.T) {
	err := InvalidEntityIDError("123")
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.False(t, IsNotFound(err))
	require.Contains(t, err.Error(), "'123'")
}
