package imaging

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

// sizeEncoder returns a payload whose length is decided by quality.
type sizeEncoder struct {
	sizeAt    func(quality float32) int
	qualities []float32
	alphas    []float32
}

func (e *sizeEncoder) Encode(img image.Image, quality, alphaQuality float32) ([]byte, error) {
	e.qualities = append(e.qualities, quality)
	e.alphas = append(e.alphas, alphaQuality)
	return make([]byte, e.sizeAt(quality)), nil
}

func TestEncodeWithinBudget_FitsFirstTry(t *testing.T) {
	enc := &sizeEncoder{sizeAt: func(q float32) int { return 1 * mb }}

	result, err := EncodeWithinBudget(enc, image.NewRGBA(image.Rect(0, 0, 1, 1)), Budget{Quality: 80, MinQuality: 30, MaxFileSize: 10 * mb})
	require.NoError(t, err)
	assert.Equal(t, float32(80), result.Quality)
	assert.Equal(t, 1, result.Attempts)
	assert.False(t, result.OverBudget)
	assert.Equal(t, []float32{80}, enc.alphas)
}

func TestEncodeWithinBudget_StepsDown(t *testing.T) {
	// 12MB at 80, shrinking 1MB per 5 quality points: fits at 70.
	enc := &sizeEncoder{sizeAt: func(q float32) int { return int(12*mb - (80-q)/5*mb) }}

	result, err := EncodeWithinBudget(enc, image.NewRGBA(image.Rect(0, 0, 1, 1)), Budget{Quality: 80, MinQuality: 30, MaxFileSize: 10 * mb})
	require.NoError(t, err)
	assert.Equal(t, []float32{80, 75, 70}, enc.qualities)
	assert.Equal(t, float32(70), result.Quality)
	assert.LessOrEqual(t, len(result.Data), 10*mb)
	assert.False(t, result.OverBudget)
}

func TestEncodeWithinBudget_AcceptsAtMinimum(t *testing.T) {
	enc := &sizeEncoder{sizeAt: func(q float32) int { return 12 * mb }}

	result, err := EncodeWithinBudget(enc, image.NewRGBA(image.Rect(0, 0, 1, 1)), Budget{Quality: 80, MinQuality: 30, MaxFileSize: 10 * mb})
	require.NoError(t, err)
	assert.True(t, result.OverBudget)
	assert.Equal(t, float32(30), result.Quality)
	assert.Equal(t, 11, result.Attempts, "(80-30)/5+1 attempts")
	assert.Equal(t, 12*mb, len(result.Data))
}

func TestEncodeWithinBudget_ClampsToMinimum(t *testing.T) {
	enc := &sizeEncoder{sizeAt: func(q float32) int { return 12 * mb }}

	result, err := EncodeWithinBudget(enc, image.NewRGBA(image.Rect(0, 0, 1, 1)), Budget{Quality: 42, MinQuality: 30, MaxFileSize: 10 * mb})
	require.NoError(t, err)
	assert.Equal(t, []float32{42, 37, 32, 30}, enc.qualities)
	assert.Equal(t, float32(30), result.Quality)
}

func TestEncodeWithinBudget_Property(t *testing.T) {
	budgets := []Budget{
		{Quality: 80, MinQuality: 30, MaxFileSize: 5 * mb},
		{Quality: 90, MinQuality: 50, MaxFileSize: 1 * mb},
		{Quality: 63, MinQuality: 61, MaxFileSize: 2 * mb},
		{Quality: 30, MinQuality: 30, MaxFileSize: 100},
	}

	for _, budget := range budgets {
		enc := &sizeEncoder{sizeAt: func(q float32) int { return int(q) * 100 * 1024 }}

		result, err := EncodeWithinBudget(enc, image.NewRGBA(image.Rect(0, 0, 1, 1)), budget)
		require.NoError(t, err)

		fits := int64(len(result.Data)) <= budget.MaxFileSize
		assert.True(t, fits || result.Quality == budget.MinQuality, "budget %+v", budget)
		assert.LessOrEqual(t, result.Attempts, int((budget.Quality-budget.MinQuality)/QualityStep)+2)
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode(img image.Image, quality, alphaQuality float32) ([]byte, error) {
	return nil, errors.New("boom")
}

func TestEncodeWithinBudget_EncoderError(t *testing.T) {
	_, err := EncodeWithinBudget(failingEncoder{}, image.NewRGBA(image.Rect(0, 0, 1, 1)), Budget{Quality: 80, MinQuality: 30, MaxFileSize: 1})
	assert.EqualError(t, err, "boom")
}

func TestClampQuality(t *testing.T) {
	assert.Equal(t, 80, clampQuality(80))
	assert.Equal(t, 73, clampQuality(72.6))
	assert.Equal(t, 100, clampQuality(140))
	assert.Equal(t, 0, clampQuality(-3))
}

func TestAvifEncoder_Encode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}

	data, err := NewAvifEncoder(AvifEncoderConfig{Speed: 10}).Encode(img, 60, 60)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "ftyp", string(data[4:8]))
}
