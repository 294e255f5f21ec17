package imaging

import (
	"image"
	"math"

	"github.com/nfnt/resize"
)

/*
TargetSize computes the dimensions of an image scaled down to maxWidth,
preserving the aspect ratio. ok is false when the image is not wider
than maxWidth and should be left alone.
*/
func TargetSize(width, height, maxWidth int) (newWidth, newHeight int, ok bool) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height, false
	}

	newWidth = maxWidth
	newHeight = int(math.Round(float64(height) * float64(maxWidth) / float64(width)))

	if newHeight < 1 {
		newHeight = 1
	}

	return newWidth, newHeight, true
}

/*
FitWidth returns img resized down to maxWidth with a Lanczos3 filter,
or img itself when it already fits.
*/
func FitWidth(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()

	newWidth, newHeight, ok := TargetSize(bounds.Dx(), bounds.Dy(), maxWidth)

	if !ok {
		return img
	}

	return resize.Resize(uint(newWidth), uint(newHeight), img, resize.Lanczos3)
}
