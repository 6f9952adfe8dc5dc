package integrations

import (
	"bytes"
	"image"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageHeader(t *testing.T) {
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, image.NewRGBA(image.Rect(0, 0, 8, 3)), nil))

	tests := []struct {
		name    string
		input   []byte
		want    ImageInfo
		wantErr bool
	}{
		{name: "png", input: testPNG(t, 5, 7), want: ImageInfo{Format: "png", Width: 5, Height: 7}},
		{name: "jpeg", input: jpg.Bytes(), want: ImageInfo{Format: "jpeg", Width: 8, Height: 3}},
		{name: "garbage", input: []byte("<html>rate limited</html>"), wantErr: true},
		{name: "empty", input: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeImageHeader(bytes.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"already fits", 500, 700, 600, 800, 500, 700},
		{"width bound", 1200, 800, 600, 800, 600, 400},
		{"height bound", 600, 1600, 600, 800, 300, 800},
		{"both bound", 1200, 1600, 600, 800, 600, 800},
		{"unbounded", 5000, 5000, 0, 0, 5000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestOptimizePage(t *testing.T) {
	out, err := OptimizePage(bytes.NewReader(testPNG(t, 120, 160)), PageOptions{MaxWidth: 60, MaxHeight: 80, Quality: 80, Grayscale: true})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, 80, cfg.Height)

	_, err = OptimizePage(strings.NewReader("nope"), PageOptions{})
	assert.Error(t, err)
}
