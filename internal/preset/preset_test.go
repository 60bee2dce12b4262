package preset

import (
	"testing"

	"github.com/AnyUserName/pixconv/internal/encoder"
	"github.com/AnyUserName/pixconv/internal/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFormat(t *testing.T) {
	assert.Equal(t, encoder.JPEG, DefaultFormat("image/png"))
	assert.Equal(t, encoder.WEBP, DefaultFormat("image/jpeg"))
	assert.Equal(t, encoder.JPEG, DefaultFormat("image/webp"))
	assert.Equal(t, encoder.PNG, DefaultFormat("image/gif"))
	assert.Equal(t, encoder.PNG, DefaultFormat(""))
}

func TestDefaults(t *testing.T) {
	s := Defaults("image/png")
	assert.Equal(t, encoder.JPEG, s.Format)
	require.NotNil(t, s.Quality)
	assert.Equal(t, 0.9, *s.Quality)
	require.NotNil(t, s.Resize)
	assert.True(t, s.Resize.LockAspect)
	assert.True(t, s.Resize.IsEmpty())
}

func TestGet(t *testing.T) {
	_, err := Get("no-such-preset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown preset "no-such-preset"`)
	assert.Contains(t, err.Error(), "thumbnail")

	web, err := Get("web")
	require.NoError(t, err)
	assert.Equal(t, encoder.WEBP, web.Format)
	assert.Contains(t, Names(), "thumbnail")
}

// mustGet returns a built-in preset.
func mustGet(t *testing.T, name string) Preset {
	t.Helper()
	p, err := Get(name)
	require.NoError(t, err)
	return p
}

func TestApply(t *testing.T) {
	base := Defaults("image/jpeg")

	web := mustGet(t, "web").Apply(base)
	assert.Equal(t, encoder.WEBP, web.Format)
	assert.Equal(t, 0.82, *web.Quality)
	assert.Equal(t, &resize.Spec{Width: 1280, LockAspect: true}, web.Resize)

	// base is untouched
	assert.Equal(t, 0.9, *base.Quality)
	assert.True(t, base.Resize.IsEmpty())

	same := mustGet(t, "default").Apply(base)
	assert.Equal(t, base, same)
}
