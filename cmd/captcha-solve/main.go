package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/maltedev/shop-compare/internal/captcha/ocr"
	"github.com/maltedev/shop-compare/internal/captcha/preprocess"
	"github.com/maltedev/shop-compare/internal/captcha/tesseract"
	"github.com/maltedev/shop-compare/internal/config"
	"github.com/maltedev/shop-compare/pkg/logger"
)

func main() {
	var (
		imagePath = flag.String("image", "", "Challenge image file")
		saveDir   = flag.String("save", "", "Directory to write the preprocessed variants to (optional)")
		all       = flag.Bool("all", false, "Print every plausible candidate instead of the first")
	)
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Please provide a challenge image with -image")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	img, err := imaging.Open(*imagePath)
	if err != nil {
		logger.Error("failed to open image", "path", *imagePath, "error", err)
		os.Exit(1)
	}

	variants := preprocess.Run(img)

	if *saveDir != "" {
		if err := os.MkdirAll(*saveDir, 0o755); err != nil {
			logger.Error("failed to create output directory", "error", err)
			os.Exit(1)
		}

		base := strings.TrimSuffix(filepath.Base(*imagePath), filepath.Ext(*imagePath))
		for _, v := range variants {
			if !v.OK() {
				logger.Warn("variant failed", "variant", v.Name, "error", v.Err)
				continue
			}
			out := filepath.Join(*saveDir, fmt.Sprintf("%s_%s.png", base, v.Name))
			if err := imaging.Save(v.Bitmap.Image(), out); err != nil {
				logger.Error("failed to save variant", "variant", v.Name, "error", err)
				continue
			}
			logger.Info("variant saved", "variant", v.Name, "path", out)
		}
	}

	engine := tesseract.New(tesseract.Options{
		TessdataDir: cfg.Captcha.TessdataDir,
		Languages:   cfg.Captcha.Languages,
	})
	runner := ocr.NewRunner(engine, logger)

	found := 0
	for candidate := range runner.Candidates(context.Background(), variants) {
		found++
		fmt.Printf("%s\t%s\t%s\n", candidate.Text, candidate.Variant, candidate.Config)
		if !*all {
			break
		}
	}

	if found == 0 {
		logger.Warn("no plausible candidate", "image", *imagePath)
		os.Exit(2)
	}
}
