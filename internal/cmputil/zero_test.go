package cmputil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.branchtrim.dev/trim/internal/cmputil"
)

func TestZero(t *testing.T) {
	assert.False(t, cmputil.Zero(1))
	assert.True(t, cmputil.Zero(0))
}
