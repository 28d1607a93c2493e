package opencv

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// drawCounter draws a compact "TITLE | n" badge with its baseline at y and
// returns the badge width.
func drawCounter(mat *gocv.Mat, title string, count int, x, y int) int {
	fontFace := gocv.FontHersheySimplex
	fontScale := 0.5
	thickness := 1
	padding := 6
	spacing := 8

	titleSize := gocv.GetTextSize(title, fontFace, fontScale, thickness)
	countText := fmt.Sprintf("%d", count)
	countSize := gocv.GetTextSize(countText, fontFace, fontScale, thickness)
	sepSize := gocv.GetTextSize("|", fontFace, fontScale, thickness)

	width := titleSize.X + sepSize.X + countSize.X + spacing*2 + padding*2
	bg := image.Rect(x, y-titleSize.Y-padding, x+width, y+padding)
	gocv.Rectangle(mat, bg, color.RGBA{A: 240}, -1)
	gocv.Rectangle(mat, bg, color.RGBA{R: 80, G: 80, B: 80, A: 255}, 1)

	tx := x + padding
	gocv.PutText(mat, title, image.Pt(tx, y), fontFace, fontScale, color.RGBA{R: 64, G: 224, B: 208, A: 255}, thickness)
	tx += titleSize.X + spacing
	gocv.PutText(mat, "|", image.Pt(tx, y), fontFace, fontScale, color.RGBA{R: 150, G: 150, B: 150, A: 255}, thickness)
	tx += sepSize.X + spacing
	gocv.PutText(mat, countText, image.Pt(tx, y), fontFace, fontScale, countColor(count), thickness)

	return width
}

// countColor grades a count from gray (none) through green and orange to red.
func countColor(count int) color.RGBA {
	switch {
	case count == 0:
		return color.RGBA{R: 128, G: 128, B: 128, A: 255}
	case count <= 5:
		return color.RGBA{G: 255, A: 255}
	case count <= 15:
		return color.RGBA{G: 255, B: 255, A: 255}
	case count <= 25:
		return color.RGBA{R: 255, G: 165, A: 255}
	default:
		return color.RGBA{R: 255, A: 255}
	}
}
