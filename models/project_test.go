package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_BoostStacks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Project{}

	assert.False(t, p.IsBoosted(now))

	p.Boost(now, 24*time.Hour)
	require.NotNil(t, p.BoostedUntil)
	assert.Equal(t, now.Add(24*time.Hour), *p.BoostedUntil)
	assert.True(t, p.IsBoosted(now))

	p.Boost(now.Add(time.Hour), 24*time.Hour)
	assert.Equal(t, now.Add(48*time.Hour), *p.BoostedUntil)

	// an expired boost restarts from now
	later := now.Add(72 * time.Hour)
	p.Boost(later, 24*time.Hour)
	assert.Equal(t, later.Add(24*time.Hour), *p.BoostedUntil)
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, UserTypeInvestor.Valid())
	assert.False(t, UserTypeAdmin.Valid())
	assert.True(t, ProjectStageSeriesA.Valid())
	assert.False(t, ProjectStage("SERIES_Z").Valid())
	assert.True(t, VisibilityPrivate.Valid())
	assert.False(t, Visibility("HIDDEN").Valid())
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", User{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", User{FirstName: "Ada"}.FullName())
}
