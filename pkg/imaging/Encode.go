package imaging

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/gen2brain/avif"
)

// QualityStep is how much quality drops between attempts at fitting the size budget.
const QualityStep float32 = 5.0

type Encoder interface {
	Encode(img image.Image, quality, alphaQuality float32) ([]byte, error)
}

type AvifEncoderConfig struct {
	// Speed ranges from 0 (slowest, smallest) to 10 (fastest).
	Speed int
}

type AvifEncoder struct {
	speed int
}

func NewAvifEncoder(config AvifEncoderConfig) AvifEncoder {
	return AvifEncoder{
		speed: config.Speed,
	}
}

func (e AvifEncoder) Encode(img image.Image, quality, alphaQuality float32) ([]byte, error) {
	var (
		buf bytes.Buffer
	)

	options := avif.Options{
		Quality:      clampQuality(quality),
		QualityAlpha: clampQuality(alphaQuality),
		Speed:        e.speed,
	}

	if err := avif.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("error encoding AVIF: %w", err)
	}

	return buf.Bytes(), nil
}

func clampQuality(q float32) int {
	return int(math.Round(math.Max(0, math.Min(100, float64(q)))))
}

type Budget struct {
	Quality     float32
	MinQuality  float32
	MaxFileSize int64
}

type Encoded struct {
	Data       []byte
	Quality    float32
	Attempts   int
	OverBudget bool
}

/*
EncodeWithinBudget encodes img starting at the budget quality and steps
quality down by QualityStep until the result fits MaxFileSize. Once the
minimum quality is reached the result is accepted even when it is
still too large, so an image is never dropped.
*/
func EncodeWithinBudget(encoder Encoder, img image.Image, budget Budget) (Encoded, error) {
	var (
		err  error
		data []byte
	)

	result := Encoded{}
	quality := budget.Quality

	for {
		if data, err = encoder.Encode(img, quality, quality); err != nil {
			return result, err
		}

		result.Attempts++
		result.Data = data
		result.Quality = quality

		if int64(len(data)) <= budget.MaxFileSize {
			return result, nil
		}

		if quality <= budget.MinQuality {
			result.OverBudget = true

			slog.Warn("encoded image exceeds max file size at minimum quality",
				"size", humanize.Bytes(uint64(len(data))),
				"maxFileSize", humanize.Bytes(uint64(budget.MaxFileSize)),
				"quality", quality,
			)

			return result, nil
		}

		quality = max(quality-QualityStep, budget.MinQuality)

		slog.Debug("encoded image too large, reducing quality",
			"size", humanize.Bytes(uint64(len(data))),
			"nextQuality", quality,
		)
	}
}
