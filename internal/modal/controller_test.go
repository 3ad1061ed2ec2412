package modal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNav struct {
	frames []Frame
}

func (r *recordingNav) Push(f Frame) { r.frames = append(r.frames, f) }

func TestOpen_PushesOnTransitionOnly(t *testing.T) {
	nav := &recordingNav{}
	c := NewController(nav, Location{Tab: "shop"})

	assert.True(t, c.Open(Cart))
	assert.False(t, c.Open(Cart), "already open")
	require.Len(t, nav.frames, 1)
	require.NotNil(t, nav.frames[0].Overlay)
	assert.Equal(t, Cart, *nav.frames[0].Overlay)
	assert.Equal(t, "shop", nav.frames[0].Location.Tab)
}

func TestBack_StackedOverlaysCloseInOrder(t *testing.T) {
	nav := &recordingNav{}
	c := NewController(nav, Location{Tab: "shop"})

	c.Open(Cart)
	c.Open(ProductDetail)
	c.Open(Checkout)
	assert.Len(t, nav.frames, 3)

	r := c.Back()
	require.NotNil(t, r.Closed)
	assert.Equal(t, Checkout, *r.Closed)

	r = c.Back()
	require.NotNil(t, r.Closed)
	assert.Equal(t, ProductDetail, *r.Closed)

	assert.True(t, c.IsOpen(Cart))
	assert.Equal(t, []Overlay{Cart}, c.OpenOverlays())
}

func TestBack_OverlayBeforeNavigation(t *testing.T) {
	c := NewController(nil, Location{Tab: "shop"})
	c.Navigate(Location{Tab: "shop", Collection: "summer"})
	c.Open(Profile)

	r := c.Back()
	require.NotNil(t, r.Closed)
	assert.Equal(t, Profile, *r.Closed)
	assert.Equal(t, "summer", c.Location().Collection, "overlay consumed the back")

	r = c.Back()
	assert.Nil(t, r.Closed)
	require.NotNil(t, r.Restored)
	assert.Equal(t, Location{Tab: "shop"}, *r.Restored)

	r = c.Back()
	assert.Nil(t, r.Closed)
	assert.Nil(t, r.Restored, "nothing left")
}

func TestNavigate_SameLocationNoFrame(t *testing.T) {
	nav := &recordingNav{}
	c := NewController(nav, Location{Tab: "shop"})
	c.Navigate(Location{Tab: "shop"})
	assert.Empty(t, nav.frames)

	c.Navigate(Location{Tab: "missions"})
	require.Len(t, nav.frames, 1)
	assert.Nil(t, nav.frames[0].Overlay)
}

func TestClose_DoesNotPush(t *testing.T) {
	nav := &recordingNav{}
	c := NewController(nav, Location{})
	c.Open(ProductDetail)
	assert.True(t, c.Close(ProductDetail))
	assert.False(t, c.Close(ProductDetail))
	assert.Len(t, nav.frames, 1)
	assert.Empty(t, c.OpenOverlays())
}

func TestBackPriority_CoversEveryOverlay(t *testing.T) {
	assert.Len(t, BackPriority, len(overlayNames))
	for o := range overlayNames {
		assert.Contains(t, BackPriority, o)
	}
}

func TestParseOverlay(t *testing.T) {
	for o, name := range overlayNames {
		got, err := ParseOverlay(name)
		require.NoError(t, err)
		assert.Equal(t, o, got)
		assert.Equal(t, name, o.String())
	}
	_, err := ParseOverlay("popup")
	assert.Error(t, err)
}
