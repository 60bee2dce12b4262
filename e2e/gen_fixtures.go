//go:build ignore

// gen_fixtures writes a small mixed set of inputs for trying pixconv by hand:
// every accepted input type, one nested directory and one broken file.
// Usage: go run gen_fixtures.go <output_dir> [count]
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir> [count]")
		os.Exit(1)
	}
	dir := os.Args[1]
	// Extra PNGs beyond the default quota of 20, to see the limit kick in.
	count := 3
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "count must be a number")
			os.Exit(1)
		}
		count = n
	}
	must(os.MkdirAll(filepath.Join(dir, "cards"), 0o755))

	write(filepath.Join(dir, "banner.jpg"), encodeJPEG(gradient(400, 225)))
	write(filepath.Join(dir, "logo.png"), encodePNG(alphaGradient(100, 100)))
	write(filepath.Join(dir, "spinner.gif"), encodeGIF(gradient(64, 64)))
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("card-%d.png", i)
		write(filepath.Join(dir, "cards", name), encodePNG(bordered(200, 150, uint8(i*60))))
	}

	// Valid signature, truncated body: detected as png, fails to probe.
	broken := encodePNG(gradient(32, 32))
	write(filepath.Join(dir, "broken.png"), broken[:60])

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created %d fixtures in %s\n", count+4, dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func bordered(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 60, B: 30, A: uint8(x * 255 / w)})
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	must(png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	must(jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}

func encodeGIF(img image.Image) []byte {
	pal := image.NewPaletted(img.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(pal, img.Bounds(), img, image.Point{})
	var buf bytes.Buffer
	must(gif.EncodeAll(&buf, &gif.GIF{Image: []*image.Paletted{pal, pal}, Delay: []int{10, 10}}))
	return buf.Bytes()
}

func write(path string, data []byte) {
	must(os.WriteFile(path, data, 0o644))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
