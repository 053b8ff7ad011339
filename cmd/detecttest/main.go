// Command detecttest runs region detection on one scan and writes the
// annotated result.
package main

import (
	"flag"
	"fmt"
	"os"

	scanimage "shelfscan/internal/image"
	"shelfscan/internal/params"
	"shelfscan/internal/region"

	"gocv.io/x/gocv"
)

func main() {
	imagePath := flag.String("image", "", "Path to scan (PNG, JPEG, TIFF, BMP or PGM)")
	outPath := flag.String("out", "detected.png", "Annotated output image")
	def := params.Default()
	cropMinW := flag.Int("crop-min-width", def.CropMinWidth, "Crop envelope left edge")
	cropMaxW := flag.Int("crop-max-width", def.CropMaxWidth, "Crop envelope right edge")
	cropMinH := flag.Int("crop-min-height", def.CropMinHeight, "Crop envelope top edge")
	cropMaxH := flag.Int("crop-max-height", def.CropMaxHeight, "Crop envelope bottom edge")
	digitMinW := flag.Int("digit-min-width", def.DigitMinWidth, "Regions must be wider than this")
	digitMinH := flag.Int("digit-min-height", def.DigitMinHeight, "Regions must be taller than this")
	dilateW := flag.Int("dilation-width", def.DilationWidth, "Dilation kernel width")
	dilateH := flag.Int("dilation-height", def.DilationHeight, "Dilation kernel height")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: detecttest -image <path> [-out detected.png] [-dilation-width 19] ...")
		os.Exit(1)
	}

	p, err := params.New(*cropMinW, *cropMaxW, *cropMinH, *cropMaxH, *digitMinW, *digitMinH, *dilateW, *dilateH)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid parameters: %v\n", err)
		os.Exit(1)
	}

	rec, err := scanimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()
	fmt.Printf("Loaded %s: %dx%d pixels\n", rec.Name, rec.Width(), rec.Height())

	fmt.Printf("\nDetection parameters:\n")
	fmt.Printf("  Envelope: x %d..%d  y %d..%d\n", p.CropMinWidth, p.CropMaxWidth, p.CropMinHeight, p.CropMaxHeight)
	fmt.Printf("  Minimum region: >%dx%d\n", p.DigitMinWidth, p.DigitMinHeight)
	fmt.Printf("  Dilation: %dx%d, %d iterations\n", p.DilationWidth, p.DilationHeight, region.DilationIterations)

	candidates := region.Candidates(rec.Original, p)
	result, err := region.Detect(rec, p, region.DefaultStyle())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nKept %d of %d candidate regions:\n", len(result.Boxes), len(candidates))
	fmt.Printf("%-6s %8s %8s %8s %8s\n", "Index", "X", "Y", "W", "H")
	for i, b := range result.Boxes {
		fmt.Printf("%-6d %8d %8d %8d %8d\n", i, b.X, b.Y, b.Width, b.Height)
	}

	if !gocv.IMWrite(*outPath, rec.Working) {
		fmt.Fprintf(os.Stderr, "Failed to write %s\n", *outPath)
		os.Exit(1)
	}
	fmt.Printf("\nAnnotated image written to %s\n", *outPath)
}
