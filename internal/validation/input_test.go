package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("tourist@example.com"))
	assert.NoError(t, ValidateEmail("  Tourist.Name+sos@Example.org "))

	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at-sign"))
	assert.Error(t, ValidateEmail("a@b@c.com"))
	assert.Error(t, ValidateEmail("user@localhost"))
	assert.Error(t, ValidateEmail("us er@example.com"))
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(12.9, 77.6))
	assert.NoError(t, ValidateCoordinates(-90, 180))

	assert.Error(t, ValidateCoordinates(91, 0))
	assert.Error(t, ValidateCoordinates(0, -181))
	assert.Error(t, ValidateCoordinates(math.NaN(), 10))
	assert.Error(t, ValidateCoordinates(10, math.Inf(1)))
}

func TestValidateLength(t *testing.T) {
	assert.NoError(t, ValidateLength("title", "Оползень", 1, 10))
	assert.Error(t, ValidateLength("title", "", 1, 10))
	assert.Error(t, ValidateLength("title", "слишком длинный заголовок", 1, 10))
}

func TestValidateNonEmpty(t *testing.T) {
	assert.NoError(t, ValidateNonEmpty("userId", "u1"))
	assert.Error(t, ValidateNonEmpty("userId", "   "))
}
