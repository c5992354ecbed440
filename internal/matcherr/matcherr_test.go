package matcherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
		kind string
	}{
		{"validation", Validation("bad %s", "key"), ErrValidation, "validation"},
		{"transition", InvalidTransition("used -> notUsed"), ErrInvalidTransition, "invalid_transition"},
		{"not found", NotFound("match %q", "m1"), ErrNotFound, "not_found"},
		{"transport", Transport("closed"), ErrTransport, "transport"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.want)
			assert.Equal(t, tc.kind, Kind(tc.err))
			assert.Equal(t, tc.kind, Kind(fmt.Errorf("outer: %w", tc.err)))
		})
	}
}

func TestKind_UnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, "internal", Kind(errors.New("boom")))
	assert.Equal(t, "", Kind(nil))
}

func TestValidation_MessageCarriesDetail(t *testing.T) {
	err := Validation("remainingTimeSeconds must be >= 0, got %d", -3)
	assert.Equal(t, "validation error: remainingTimeSeconds must be >= 0, got -3", err.Error())
}
