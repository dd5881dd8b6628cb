package publish

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/radiofrance/imgtag/pkg/logger"
)

// imageSize reads the dimensions of a raster image from its header.
// It returns zeros for formats it can't decode, such as SVG.
func imageSize(fsys afero.Fs, filePath string) (int, int) {
	file, err := fsys.Open(filePath)
	if err != nil {
		return 0, 0
	}
	defer func() {
		_ = file.Close()
	}()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		logger.Debugf("Can't read dimensions of %s: %v", filePath, err)
		return 0, 0
	}
	logger.Debugf("%s is a %dx%d %s image", filePath, cfg.Width, cfg.Height, format)

	return cfg.Width, cfg.Height
}
