package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("auth.jwt_secret", "secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 2000, cfg.Messaging.MaxMessageLength)
	assert.Equal(t, "social.events", cfg.AMQP.Exchange)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.Server.DebugRoutes)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Server.CORSOrigins)
}

func TestFromViperRequiresSecret(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	_, err := fromViper(v)
	require.Error(t, err)
}

func TestFromViperRejectsNonPositiveLength(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("auth.jwt_secret", "secret")
	v.Set("messaging.max_message_length", 0)

	_, err := fromViper(v)
	require.Error(t, err)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "from-env")
	t.Setenv("MESSAGING_MAX_MESSAGE_LENGTH", "500")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 500, cfg.Messaging.MaxMessageLength)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}
