package video

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// LoadStill decodes an image file and scales it to width x height.
func LoadStill(path string, width, height int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	logrus.WithFields(logrus.Fields{
		"function": "LoadStill",
		"path":     path,
		"format":   format,
		"size":     img.Bounds().Size(),
	}).Info("Loaded still image")
	return ScaleImage(img, width, height), nil
}

// ScaleImage converts img to an RGBA8 frame of width x height with row 0 at
// the bottom.
func ScaleImage(img image.Image, width, height int) []byte {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if img.Bounds().Size() == dst.Rect.Size() {
		draw.Draw(dst, dst.Rect, img, img.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	}
	vflip(dst.Pix, width, height)
	return dst.Pix
}
