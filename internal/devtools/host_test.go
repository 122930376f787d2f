package devtools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetachedHost(t *testing.T) {
	h := &Host{pageTitle: "Discord"}
	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close())

	_, err := h.EvalString(context.Background(), `() => 1`)
	assert.ErrorIs(t, err, ErrDetached)

	_, err = h.Screenshot(context.Background(), 10, 10)
	assert.ErrorIs(t, err, ErrDetached)

	assert.Equal(t, "Discord", h.Title())
}
