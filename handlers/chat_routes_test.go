package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePreview(t *testing.T) {
	short := "see you at the game"
	assert.Equal(t, short, messagePreview(short))

	long := strings.Repeat("a", 200)
	preview := messagePreview(long)
	assert.Equal(t, strings.Repeat("a", 117)+"...", preview)

	// Multi-byte text must never be cut mid-rune.
	emoji := strings.Repeat("🎉", 200)
	preview = messagePreview(emoji)
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, strings.Repeat("🎉", 117)+"...", preview)
}

func TestTeamDisplayName(t *testing.T) {
	f := newRouteFixture(t)

	team := models.Team{ID: uuid.NewString(), Name: "Ridgeview Hawks", CurrentSeason: "2024-2025"}
	require.NoError(t, f.db.Create(&team).Error)

	assert.Equal(t, "Ridgeview Hawks", teamDisplayName(f.db, team.ID))
	assert.Equal(t, "your team", teamDisplayName(f.db, "no-such-team"),
		"a missing mirror row falls back instead of leaking the id")
}
