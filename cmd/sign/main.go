// Command sign stamps a signature image onto a PDF according to a YAML
// script, using a headless session in which one display pixel equals one
// point. Placement coordinates in the script are fractions of the page
// box, measured from the top-left corner like the interactive editor.
//
// Example script:
//
//	input: contract.pdf
//	output: contract-signed.pdf
//	image: signature.png
//	opacity: 1.0
//	placements:
//	  - page: 1
//	    x: 0.55
//	    y: 0.80
//	    w: 0.30
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tungpham42/sign/compositor"
	"github.com/tungpham42/sign/observability"
	"github.com/tungpham42/sign/raster"
	"github.com/tungpham42/sign/session"
)

type script struct {
	Input      string      `yaml:"input"`
	Output     string      `yaml:"output"`
	Image      string      `yaml:"image"`
	Opacity    float64     `yaml:"opacity"`
	Placements []scriptBox `yaml:"placements"`
}

type scriptBox struct {
	Page int     `yaml:"page"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	W    float64 `yaml:"w"`
	H    float64 `yaml:"h"` // optional; 0 keeps the image aspect ratio
}

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sign [-v] <script.yaml>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}
}

func run(scriptPath string, verbose bool) error {
	raw, err := os.ReadFile(scriptPath)
	if err != nil {
		return err
	}
	var sc script
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("parse script: %w", err)
	}
	if err := sc.validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	docBytes, err := os.ReadFile(sc.Input)
	if err != nil {
		return err
	}
	imgBytes, err := os.ReadFile(sc.Image)
	if err != nil {
		return err
	}
	overlay, err := raster.Decode(imgBytes)
	if err != nil {
		return err
	}

	s := session.New(compositor.Config{Opacity: sc.Opacity}, log)
	info, err := s.LoadDocument(docBytes)
	if err != nil {
		return err
	}

	for _, p := range sc.Placements {
		size, err := info.Size(p.Page)
		if err != nil {
			return err
		}
		// Headless viewport: one pixel per point.
		if err := s.PageRendered(p.Page, size.Width, size.Height); err != nil {
			return err
		}

		w := p.W * size.Width
		h := p.H * size.Height
		if h == 0 {
			h = w * overlay.AspectRatio()
		}
		x := p.X * size.Width
		y := p.Y * size.Height

		id, err := s.PlaceAt(p.Page, x+w/2, y+h/2, imgBytes)
		if err != nil {
			return err
		}
		if err := s.Resize(id, w, h, x, y); err != nil {
			return err
		}
	}

	out, res, err := s.Export(context.Background())
	if err != nil {
		return err
	}
	for _, skip := range res.Skipped {
		fmt.Fprintf(os.Stderr, "sign: skipped placement on page %d: %s\n", skip.Page, skip.Reason)
	}
	if err := os.WriteFile(sc.Output, out, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d placements applied, %d skipped)\n", sc.Output, res.Applied, len(res.Skipped))
	return nil
}

func (sc script) validate() error {
	switch {
	case sc.Input == "":
		return fmt.Errorf("script: input is required")
	case sc.Output == "":
		return fmt.Errorf("script: output is required")
	case sc.Image == "":
		return fmt.Errorf("script: image is required")
	case len(sc.Placements) == 0:
		return fmt.Errorf("script: at least one placement is required")
	}
	for i, p := range sc.Placements {
		if p.Page < 1 {
			return fmt.Errorf("script: placement %d: page must be >= 1", i)
		}
		if p.W <= 0 || p.W > 1 {
			return fmt.Errorf("script: placement %d: w must be in (0, 1]", i)
		}
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return fmt.Errorf("script: placement %d: x and y must be in [0, 1]", i)
		}
		if p.H < 0 || p.H > 1 {
			return fmt.Errorf("script: placement %d: h must be in [0, 1]", i)
		}
	}
	return nil
}
