package imaging

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeFile decodes an original image of any registered format.
func DecodeFile(path string) (image.Image, string, error) {
	var (
		err    error
		file   *os.File
		img    image.Image
		format string
	)

	if file, err = os.Open(path); err != nil {
		return nil, "", fmt.Errorf("error opening image '%s': %w", path, err)
	}

	defer file.Close()

	if img, format, err = image.Decode(file); err != nil {
		return nil, "", fmt.Errorf("error decoding image '%s': %w", path, err)
	}

	return img, format, nil
}
