package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelDerivation(t *testing.T) {
	base := New("store error").SetStatusCode(http.StatusInternalServerError)
	notFound := base.New("not found").SetStatusCode(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, notFound.StatusCode())
	assert.True(t, errors.Is(notFound, base))
	assert.False(t, errors.Is(base, notFound))
}

func TestMsgWrapsOriginal(t *testing.T) {
	sentinel := New("conflict").SetStatusCode(http.StatusConflict)
	err := sentinel.Msg("token name already in use")

	assert.Equal(t, "token name already in use", err.Error())
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, http.StatusConflict, err.StatusCode())
}

func TestErrAttachesCauses(t *testing.T) {
	sentinel := New("db error")
	cause := fmt.Errorf("connection reset")
	err := sentinel.Err(cause)

	assert.True(t, errors.Is(err, sentinel))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.ErrorAll(), "connection reset")
	// Error() must stay clean for client-visible surfaces.
	assert.Equal(t, "db error", err.Error())
}

func TestStatusCodeCopySemantics(t *testing.T) {
	a := New("base").SetStatusCode(http.StatusBadRequest)
	b := a.SetStatusCode(http.StatusConflict)

	assert.Equal(t, http.StatusBadRequest, a.StatusCode())
	assert.Equal(t, http.StatusConflict, b.StatusCode())
}
