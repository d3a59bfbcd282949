package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsImageMIME(t *testing.T) {
	t.Parallel()

	require.True(t, IsImageMIME("image/png"))
	require.True(t, IsImageMIME(" IMAGE/JPEG "))
	require.False(t, IsImageMIME("video/mp4"))
	require.False(t, IsImageMIME(""))
}

func TestIsThumbnailExtension(t *testing.T) {
	t.Parallel()

	require.True(t, IsThumbnailExtension(".png"))
	require.True(t, IsThumbnailExtension(".JPG"))
	require.False(t, IsThumbnailExtension(".svg"))
	require.False(t, IsThumbnailExtension(".mp4"))
}

func TestHumanSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5368709120, "5.0 GB"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, HumanSize(tt.in))
	}
}
