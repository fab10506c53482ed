package build

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sitepipe/internal/cache"
	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/fileset"
)

// imageFormat classifies a file by extension.
type imageFormat int

const (
	formatOther imageFormat = iota
	formatJPEG
	formatPNG
	formatSVG
)

func formatOf(name string) imageFormat {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return formatJPEG
	case ".png":
		return formatPNG
	case ".svg":
		return formatSVG
	default:
		return formatOther
	}
}

func (b *Builder) images(ctx context.Context) (int, error) {
	files, err := b.expand(b.cfg.Paths.Images.Dev)
	if err != nil {
		return 0, err
	}

	dist := b.cfg.Resolve(b.cfg.Paths.Images.Dist)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(f.Path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", f.Rel, err)
			}

			out, err := b.optimizeCached(gctx, f.Rel, data)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Rel, err)
			}

			return b.writer.Write(fileset.Dest(dist, f, nil), out)
		})
	}

	// The operation completes only once every image is written.
	if err := g.Wait(); err != nil {
		return 0, err
	}

	return len(files), nil
}

// optimizeCached returns the optimized bytes for data, consulting the cache
// for formats that are re-encoded.
func (b *Builder) optimizeCached(ctx context.Context, name string, data []byte) ([]byte, error) {
	format := formatOf(name)
	if format == formatOther {
		return data, nil
	}

	key := cache.Key(data, imageFingerprint(format, b.cfg.Images))

	if cached, ok, err := b.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	out, err := optimizeImage(format, data, b.cfg.Images, b.minifier.Bytes)
	if err != nil {
		return nil, err
	}

	if err := b.cache.Put(ctx, key, out); err != nil {
		return nil, err
	}

	return out, nil
}

func imageFingerprint(format imageFormat, opts config.ImageOptions) string {
	return fmt.Sprintf("image/v1;format=%d;quality=%d;colors=%d;svg=%t",
		format, opts.JPEGQuality, opts.PNGColors, opts.SVG)
}

// optimizeImage re-encodes data. The result is never larger than the input.
func optimizeImage(
	format imageFormat,
	data []byte,
	opts config.ImageOptions,
	minifyBytes func(mediatype string, v []byte) ([]byte, error),
) ([]byte, error) {
	var (
		out []byte
		err error
	)

	switch format {
	case formatJPEG:
		out, err = encodeJPEG(data, opts.JPEGQuality)
	case formatPNG:
		out, err = encodePNG(data, opts.PNGColors)
	case formatSVG:
		if !opts.SVG {
			return data, nil
		}

		out, err = minifyBytes(mediaSVG, data)
		if err != nil {
			err = fmt.Errorf("minifying svg: %w", err)
		}
	default:
		return data, nil
	}

	if err != nil {
		return nil, err
	}

	if len(out) >= len(data) {
		return data, nil
	}

	return out, nil
}

func encodeJPEG(data []byte, quality int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

func encodePNG(data []byte, colors int) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}

	if colors > 0 {
		img = quantizeImage(img, colors)
	}

	var buf bytes.Buffer

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}

	return buf.Bytes(), nil
}

// quantizeImage reduces img to a median-cut palette of at most colors
// entries, dithering with Floyd-Steinberg.
func quantizeImage(img image.Image, colors int) image.Image {
	if p, ok := img.(*image.Paletted); ok && len(p.Palette) <= colors {
		return img
	}

	q := quantize.MedianCutQuantizer{AddTransparent: !opaque(img)}
	palette := q.Quantize(make(color.Palette, 0, colors), img)

	bounds := img.Bounds()
	out := image.NewPaletted(bounds, palette)
	draw.FloydSteinberg.Draw(out, bounds, img, bounds.Min)

	return out
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}

	return false
}
