package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// minTargetBitRate floors the target so already-small files are not
// over-compressed into mush.
const minTargetBitRate = 800_000 // 800 Kbps

// CompressResult reports what the compressor produced. When re-encoding
// would have grown the file, Path points back at the original and Ratio is
// "1.00".
type CompressResult struct {
	Path           string `json:"path"`
	OriginalSize   int64  `json:"original_size"`
	CompressedSize int64  `json:"compressed_size"`
	Ratio          string `json:"ratio"`
}

type Compressor struct {
	prober *Prober
	runner CommandRunner
	logger *slog.Logger
}

func NewCompressor(logger *slog.Logger) *Compressor {
	runner := execRunner{}
	return &Compressor{
		prober: NewProberWithRunner(runner, logger),
		runner: runner,
		logger: logger,
	}
}

func NewCompressorWithRunner(runner CommandRunner, logger *slog.Logger) *Compressor {
	return &Compressor{
		prober: NewProberWithRunner(runner, logger),
		runner: runner,
		logger: logger,
	}
}

// Compress re-encodes a local video to 40% of its source bitrate, floored at
// 800 Kbps, with a fixed compatibility-first profile. Unlike probing this is
// a hard-error path: a silently skipped compression is a storage-cost
// decision the caller must be aware of.
func (c *Compressor) Compress(ctx context.Context, localPath string) (*CompressResult, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}
	originalSize := info.Size()

	probed := c.prober.Probe(ctx, localPath)
	targetBitRate := probed.BitRate * 40 / 100
	if targetBitRate < minTargetBitRate {
		targetBitRate = minTargetBitRate
	}

	outPath := withSuffix(localPath, "_compressed", ".mp4")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", localPath,
		"-c:v", "libx264",
		"-b:v", fmt.Sprintf("%dk", targetBitRate/1000),
		"-preset", "veryfast",
		"-profile:v", "baseline",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
	if _, err := c.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return nil, fmt.Errorf("ffmpeg encode failed: %w", err)
	}

	outInfo, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat encoder output: %w", err)
	}

	if outInfo.Size() >= originalSize {
		// Compression must never regress file size; keep the original.
		c.logger.Info("encoder output larger than input, keeping original",
			"path", localPath, "original_size", originalSize, "encoded_size", outInfo.Size())
		_ = os.Remove(outPath)
		return &CompressResult{
			Path:           localPath,
			OriginalSize:   originalSize,
			CompressedSize: originalSize,
			Ratio:          "1.00",
		}, nil
	}

	c.logger.Info("video compressed",
		"path", outPath, "original_size", originalSize, "compressed_size", outInfo.Size())
	return &CompressResult{
		Path:           outPath,
		OriginalSize:   originalSize,
		CompressedSize: outInfo.Size(),
		Ratio:          fmt.Sprintf("%.2f", float64(outInfo.Size())/float64(originalSize)),
	}, nil
}

func withSuffix(path, suffix, ext string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), base+suffix+ext)
}
