package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log"
	"math/rand/v2"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imageshelf/internal/config"
	"imageshelf/internal/domain"
	"imageshelf/internal/domain/upload"
	"imageshelf/internal/pkg/logger"
	"imageshelf/internal/server"
)

var rootCmd = &cobra.Command{
	Use:          "seed",
	Short:        "Uploads synthetic scanned pages through the upload pipeline",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return fmt.Errorf("failed to get count: %w", err)
		}
		if count < 1 {
			return errors.New("--count must be at least 1")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = zl.Sync() }()

		ctx := cmd.Context()
		res, err := server.Open(ctx, cfg, zl)
		if err != nil {
			return err
		}
		defer res.Close()

		svc := upload.NewService(cfg, res.Images, res.Identities, res.Files, nil, zl.Named("upload"))
		for i := 1; i <= count; i++ {
			page, err := syntheticPage(i)
			if err != nil {
				return err
			}
			desc, err := svc.Ingest(ctx, page)
			if err != nil {
				return fmt.Errorf("seed %s: %w", page.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %4dx%-4d %s\n", desc.OriginalName, desc.Width, desc.Height, desc.URL)
		}
		zl.Info("seed completed", zap.Int("count", count))
		return nil
	},
}

// syntheticPage draws a page-like image: light background, dark text
// lines. Odd pages are JPEG, even pages PNG.
func syntheticPage(n int) (upload.File, error) {
	w := 600 + rand.IntN(5)*100
	h := w * 3 / 2
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	paper := color.RGBA{R: 245, G: 240, B: 228, A: 255}
	ink := color.RGBA{R: 40, G: 40, B: 48, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, paper)
		}
	}
	for line := 60; line < h-60; line += 28 {
		length := w - 120 - rand.IntN(w/3)
		for x := 60; x < 60+length; x++ {
			for dy := 0; dy < 6; dy++ {
				img.Set(x, line+dy, ink)
			}
		}
	}

	var buf bytes.Buffer
	f := upload.File{}
	if n%2 == 1 {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return f, err
		}
		f.Name, f.ContentType = fmt.Sprintf("page%02d.jpg", n), domain.MimeJPEG
	} else {
		if err := png.Encode(&buf, img); err != nil {
			return f, err
		}
		f.Name, f.ContentType = fmt.Sprintf("page%02d.png", n), domain.MimePNG
	}
	f.Size = int64(buf.Len())
	f.Content = &buf
	return f, nil
}

func init() {
	rootCmd.Flags().IntP("count", "n", 8, "Number of pages to upload")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
