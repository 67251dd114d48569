package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctions(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, RangeInt(3))
	assert.Empty(t, RangeInt(0))
	assert.Equal(t, 3, Max(3, -1))
	assert.Equal(t, -1, Min(3, -1))
}
