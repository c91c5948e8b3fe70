package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	key, value := split("DB_REPLICA_DSN=host=replica sslmode=disable")
	assert.Equal(t, "DB_REPLICA_DSN", key)
	assert.Equal(t, "host=replica sslmode=disable", value)

	key, value = split("EMPTY")
	assert.Equal(t, "EMPTY", key)
	assert.Empty(t, value)
}

func TestNew(t *testing.T) {
	t.Setenv("SYNC_SCHEDULE", "@hourly")
	c := New()
	assert.Equal(t, "@hourly", GetString(c, "SYNC_SCHEDULE", ""))
}

func TestGetters(t *testing.T) {
	c := map[string]string{
		"PORT":             "9090",
		"BAD_INT":          "nine",
		"MIGRATE":          "true",
		"BAD_BOOL":         "sometimes",
		"CACHE_TTL":        "90s",
		"ACCEPTED_ORIGINS": "https://a.example, ,https://b.example",
	}

	assert.Equal(t, 9090, GetInt(c, "PORT", 8080))
	assert.Equal(t, 8080, GetInt(c, "BAD_INT", 8080))
	assert.Equal(t, 1, GetInt(nil, "PORT", 1))
	assert.Equal(t, "x", GetString(c, "MISSING", "x"))

	assert.True(t, GetBool(c, "MIGRATE", false))
	assert.True(t, GetBool(c, "BAD_BOOL", true))
	assert.False(t, GetBool(nil, "MIGRATE", false))

	assert.Equal(t, 90*time.Second, GetDuration(c, "CACHE_TTL", time.Minute))
	assert.Equal(t, time.Minute, GetDuration(c, "PORT", time.Minute))

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, GetList(c, "ACCEPTED_ORIGINS"))
	assert.Nil(t, GetList(c, "MISSING"))
}
