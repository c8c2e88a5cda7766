package runid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_ReturnsDistinctIDs(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
