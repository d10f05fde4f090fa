package media

import (
	"log/slog"

	"github.com/disintegration/imaging"
)

// ProbeImage classifies a local image's orientation from its decoded
// dimensions, under the same degrade-don't-fail policy as video probing.
func ProbeImage(path string, logger *slog.Logger) ProbeResult {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		logger.Warn("image decode failed, substituting defaults", "path", path, "error", err)
		return degradedResult()
	}

	bounds := img.Bounds()
	result := ProbeResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
	if result.Width == 0 || result.Height == 0 {
		return degradedResult()
	}
	if float64(result.Width)/float64(result.Height) < 1 {
		result.Orientation = OrientationVertical
	} else {
		result.Orientation = OrientationHorizontal
	}
	return result
}
