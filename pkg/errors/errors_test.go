package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := New("TEST_CODE", "something went wrong", http.StatusBadRequest)
	require.Equal(t, "something went wrong", err.Error())

	with := err.WithInternal(errors.New("disk full"))
	require.Equal(t, "something went wrong: disk full", with.Error())
	require.EqualError(t, errors.Unwrap(with), "disk full")

	// The original must stay untouched.
	require.Nil(t, err.Internal)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrForbidden)
	require.Same(t, ErrForbidden, appErr)

	wrapped := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, wrapped.Code)
	require.EqualError(t, wrapped.Internal, "boom")

	nested := FromError(Wrap(errors.New("inner"), "outer"))
	require.Equal(t, "INTERNAL_ERROR", nested.Code)
}

func TestErrorsIsThroughWrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := ErrPersistence.WithInternal(sentinel)
	require.ErrorIs(t, err, sentinel)
}
