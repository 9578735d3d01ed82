package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisCandidates(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	assert.Equal(t, []string{"redis:6379", "localhost:6379", "localhost:56379"}, RedisCandidates())

	t.Setenv("REDIS_ADDR", " cache:6380 ")
	assert.Equal(t, []string{"cache:6380"}, RedisCandidates())
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES"} {
		t.Setenv("SEN_TEST_FLAG", v)
		assert.True(t, envBool("SEN_TEST_FLAG"), v)
	}
	t.Setenv("SEN_TEST_FLAG", "no")
	assert.False(t, envBool("SEN_TEST_FLAG"))
}

func TestBuilders(t *testing.T) {
	admin := NewAuthResult().AsAdmin().Build()
	assert.True(t, admin.User.IsAdmin())
	assert.Equal(t, "tok123", admin.AccessToken)

	s := NewAuthResult().WithTokens("a", "r").Session()
	assert.True(t, s.Authenticated())
	assert.False(t, s.IsAdmin())

	req := NewReportRequest().WithCoordinates(-25.3, -57.6).WithoutReporter().Build()
	assert.Empty(t, req.ReporterName)
	assert.InDelta(t, -25.3, *req.Lat, 1e-9)
}
