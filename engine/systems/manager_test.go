package systems

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func TestSystemManagerRequiresConfig(t *testing.T) {
	_, err := NewSystemManager(nil)
	assert.Error(t, err)
}

func TestSystemManagerIsolatesRenderers(t *testing.T) {
	sm, err := NewSystemManager(core.DefaultConfig())
	require.NoError(t, err)
	defer sm.Shutdown()

	primaryBackend, toolsBackend := headless.New(), headless.New()
	primaryID, primary, err := sm.CreateRenderer("primary", primaryBackend)
	require.NoError(t, err)
	toolsID, tools, err := sm.CreateRenderer("tools", toolsBackend)
	require.NoError(t, err)
	assert.NotEqual(t, primaryID, toolsID)
	assert.Equal(t, 2, sm.Count())

	_, err = primary.LoadPixels(metadata.NewLabel("only-primary"), 2, 2, solidPixels(2, 2, [4]uint8{1, 2, 3, 4}))
	require.NoError(t, err)
	_, ok := tools.ImageRegion(metadata.NewLabel("only-primary"))
	assert.False(t, ok)
	assert.Equal(t, 0, tools.Atlas().PageCount())

	require.NoError(t, primary.BeginFrame(metadata.ColorBlack))
	primary.FillRect(math.NewVec2(0, 0), math.NewVec2(1, 1), metadata.ColorWhite)
	_, err = primary.Present()
	require.NoError(t, err)
	assert.Equal(t, 1, primaryBackend.Counters().Frames)
	assert.Equal(t, 0, toolsBackend.Counters().Frames)

	got, ok := sm.Renderer(toolsID)
	require.True(t, ok)
	assert.Same(t, tools, got)
	assert.Equal(t, uint32(1024), got.Atlas().Config().PageWidth)
}

func TestSystemManagerEachAndDestroy(t *testing.T) {
	sm, err := NewSystemManager(core.DefaultConfig())
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, name := range []string{"a", "b", "c"} {
		id, _, err := sm.CreateRenderer(name, headless.New())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var names []string
	sm.Each(func(_ uuid.UUID, r *RendererSystem) bool {
		names = append(names, r.Name())
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, names)

	require.NoError(t, sm.DestroyRenderer(ids[1]))
	assert.ErrorIs(t, sm.DestroyRenderer(ids[1]), core.ErrUnknownWindow)
	_, ok := sm.Renderer(ids[1])
	assert.False(t, ok)

	names = nil
	sm.Each(func(_ uuid.UUID, r *RendererSystem) bool {
		names = append(names, r.Name())
		return false
	})
	assert.Equal(t, []string{"a"}, names)

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, 0, sm.Count())
}
