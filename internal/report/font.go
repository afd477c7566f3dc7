package report

import (
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"netcomfort/pkg/logx"
)

// loadFace loads a TTF face for report text. An empty or unreadable path
// falls back to the built-in bitmap face so rendering never fails on a
// missing font file. Headless boxes rarely have one installed.
func loadFace(path string, points float64, log logx.Logger) font.Face {
	if path == "" {
		return basicfont.Face7x13
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Warn("report font unavailable, using built-in face",
			logx.String("path", path), logx.Err(err))
		return basicfont.Face7x13
	}
	f, err := truetype.Parse(b)
	if err != nil {
		log.Warn("report font unparseable, using built-in face",
			logx.String("path", path), logx.Err(err))
		return basicfont.Face7x13
	}
	return truetype.NewFace(f, &truetype.Options{Size: points})
}
