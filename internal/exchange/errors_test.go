package exchange

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := NewError("bitflyer", KindNetwork, "board", errors.New("dial tcp: refused"))

	assert.Equal(t, "network_error", KindOf(base))
	// Classification survives wrapping.
	assert.Equal(t, "network_error", KindOf(fmt.Errorf("orchestrator: %w", base)))
	// Unclassifiable errors report "unknown".
	assert.Equal(t, "unknown", KindOf(errors.New("something else")))
	assert.Equal(t, "unknown", KindOf(nil))
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError("zaif", KindUnauthorized, "trade", nil))

	assert.True(t, IsKind(err, KindUnauthorized))
	assert.False(t, IsKind(err, KindNetwork))
	assert.False(t, IsKind(errors.New("plain"), KindUnauthorized))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError("bitflyer", KindAPIFailure, "place_order", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bitflyer")
	assert.Contains(t, err.Error(), "place_order")
	assert.Contains(t, err.Error(), "api_failure")
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindUnauthorized, ClassifyStatus(http.StatusUnauthorized))
	assert.Equal(t, KindUnauthorized, ClassifyStatus(http.StatusForbidden))
	assert.Equal(t, KindUnavailable, ClassifyStatus(http.StatusServiceUnavailable))
	assert.Equal(t, KindUnavailable, ClassifyStatus(http.StatusGatewayTimeout))
	assert.Equal(t, KindAPIFailure, ClassifyStatus(http.StatusBadRequest))
	assert.Equal(t, KindAPIFailure, ClassifyStatus(http.StatusInternalServerError))
}

func TestParseVenueID(t *testing.T) {
	id, err := ParseVenueID(" Bitflyer ")
	assert.NoError(t, err)
	assert.Equal(t, VenueBitflyer, id)

	id, err = ParseVenueID("zaif")
	assert.NoError(t, err)
	assert.Equal(t, VenueZaif, id)

	_, err = ParseVenueID("mtgox")
	assert.Error(t, err)
}
