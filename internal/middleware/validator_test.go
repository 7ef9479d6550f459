package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReportID(t *testing.T) {
	assert.NoError(t, ValidateReportID("3f2504e0-4f89-41d3-9a0c-0305e82c3301"))
	assert.Error(t, ValidateReportID(""))
	assert.Error(t, ValidateReportID("not-a-uuid"))
	assert.Error(t, ValidateReportID("3f2504e0-4f89-41d3-9a0c-0305e82c3301-extra"))
}

func TestValidateFileName(t *testing.T) {
	assert.NoError(t, ValidateFileName(""))
	assert.NoError(t, ValidateFileName("app.py"))
	assert.NoError(t, ValidateFileName("src/handlers/user.go"))
	assert.Error(t, ValidateFileName("../../etc/passwd"))
	assert.Error(t, ValidateFileName("x;rm -rf /"))
	assert.Error(t, ValidateFileName("a`b`.py"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("hello\x00"))
	assert.Equal(t, "a b", SanitizeString("  a b  "))
	assert.Equal(t, "ab", SanitizeString("a\x01\x02b"))
}

func TestValidateLimit(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 20, ValidateLimit(-5))
	assert.Equal(t, 50, ValidateLimit(50))
	assert.Equal(t, 100, ValidateLimit(9999))
}

func TestValidateDays(t *testing.T) {
	assert.Equal(t, 7, ValidateDays(0))
	assert.Equal(t, 30, ValidateDays(30))
	assert.Equal(t, 365, ValidateDays(1000))
}
