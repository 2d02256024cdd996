package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToUint(t *testing.T) {
	v, err := StringToUint("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), v)

	for _, bad := range []string{"", "-1", "abc", "1.5"} {
		_, err := StringToUint(bad)
		assert.Error(t, err, bad)
	}
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, err := GetUserID(c)
	assert.ErrorIs(t, err, ErrNoUserInContext)

	c.Set(ContextUserIDKey, "7")
	_, err = GetUserID(c)
	assert.Error(t, err)

	c.Set(ContextUserIDKey, uint(7))
	id, err := GetUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
}
