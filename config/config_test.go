package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DUEL_DATABASE_URL", "postgres://localhost/duel")
	t.Setenv("DUEL_GATEWAY_TOKEN", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":5200", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.ChallengeInterval)
	assert.Equal(t, time.Minute, cfg.Scheduler.ArenaInterval)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ReconcileInterval)
	assert.Equal(t, []int{40, 60, 80}, cfg.Challenge.SupportedLengths)
	assert.Equal(t, 1, cfg.Challenge.MinParticipants)
	assert.Equal(t, 5, cfg.Challenge.MaxParticipants)
	assert.Equal(t, "https://codeforces.com/api", cfg.Judge.BaseURL)
	assert.Equal(t, 6*time.Hour, cfg.Judge.CatalogTTL)
	assert.Equal(t, "duel.summary", cfg.NATS.SubjectPrefix)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.R2Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DUEL_SUPPORTED_LENGTHS", "30, 45")
	t.Setenv("DUEL_CHALLENGE_TICK_INTERVAL", "10s")
	t.Setenv("DUEL_MAX_PARTICIPANTS", "8")
	t.Setenv("DUEL_R2_BUCKET", "recaps")
	t.Setenv("DUEL_R2_ACCESS_KEY_ID", "key")
	t.Setenv("DUEL_R2_ACCOUNT_ID", "acct")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{30, 45}, cfg.Challenge.SupportedLengths)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.ChallengeInterval)
	assert.Equal(t, 8, cfg.Challenge.MaxParticipants)
	assert.True(t, cfg.R2Enabled())
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		t.Setenv("DUEL_DATABASE_URL", "")
		t.Setenv("DUEL_GATEWAY_TOKEN", "secret")
		_, err := Load()
		assert.ErrorContains(t, err, "DUEL_DATABASE_URL")
	})
	t.Run("missing token", func(t *testing.T) {
		t.Setenv("DUEL_DATABASE_URL", "postgres://localhost/duel")
		t.Setenv("DUEL_GATEWAY_TOKEN", "")
		_, err := Load()
		assert.ErrorContains(t, err, "DUEL_GATEWAY_TOKEN")
	})
	t.Run("bad lengths", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DUEL_SUPPORTED_LENGTHS", "40,abc")
		_, err := Load()
		assert.ErrorContains(t, err, "DUEL_SUPPORTED_LENGTHS")
	})
	t.Run("inverted bounds", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DUEL_MIN_PARTICIPANTS", "4")
		t.Setenv("DUEL_MAX_PARTICIPANTS", "2")
		_, err := Load()
		assert.ErrorContains(t, err, "participant bounds")
	})
}

func TestParseInts(t *testing.T) {
	got, err := parseInts(" 40,,80 ")
	require.NoError(t, err)
	assert.Equal(t, []int{40, 80}, got)

	_, err = parseInts("40x")
	assert.Error(t, err)
}
