package media

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

type Orientation string

const (
	OrientationVertical   Orientation = "vertical"
	OrientationHorizontal Orientation = "horizontal"
)

// ProbeResult describes a media file's container metadata and the derived
// orientation. Degraded means the real bytes could not be inspected (remote
// URL, missing ffprobe, corrupt file) and conservative defaults were
// substituted.
type ProbeResult struct {
	Width           int
	Height          int
	Rotation        *int
	DurationSeconds float64
	BitRate         int64
	FormatName      string
	Orientation     Orientation
	Degraded        bool
}

// CommandRunner abstracts the media tool invocation so tests can stub it.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type Prober struct {
	runner CommandRunner
	logger *slog.Logger
}

func NewProber(logger *slog.Logger) *Prober {
	return &Prober{runner: execRunner{}, logger: logger}
}

// NewProberWithRunner is used by tests and by the compressor.
func NewProberWithRunner(runner CommandRunner, logger *slog.Logger) *Prober {
	return &Prober{runner: runner, logger: logger}
}

// ffprobe JSON output, reduced to the fields we read.
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SideDataList []struct {
		Rotation *int `json:"rotation"`
	} `json:"side_data_list"`
	Tags struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
}

// Probe inspects a video handle and classifies its orientation. It never
// returns an error: when introspection is impossible the result is tagged
// Degraded and defaults to vertical, so a missing codec tool in the
// deployment environment cannot hard-block a creator's upload.
func (p *Prober) Probe(ctx context.Context, handle string) ProbeResult {
	if isRemote(handle) {
		p.logger.Info("probe skipped for remote handle", "handle", handle)
		return degradedResult()
	}

	out, err := p.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		handle)
	if err != nil {
		p.logger.Warn("ffprobe failed, substituting defaults", "handle", handle, "error", err)
		return degradedResult()
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		p.logger.Warn("unparseable ffprobe output", "handle", handle, "error", err)
		return degradedResult()
	}

	var video *ffprobeStream
	for i := range probed.Streams {
		if probed.Streams[i].CodecType == "video" {
			video = &probed.Streams[i]
			break
		}
	}
	if video == nil || video.Width == 0 || video.Height == 0 {
		p.logger.Warn("no video stream found", "handle", handle)
		return degradedResult()
	}

	result := ProbeResult{
		Width:      video.Width,
		Height:     video.Height,
		FormatName: probed.Format.FormatName,
	}
	result.DurationSeconds, _ = strconv.ParseFloat(probed.Format.Duration, 64)
	result.BitRate, _ = strconv.ParseInt(probed.Format.BitRate, 10, 64)

	if rotation := streamRotation(video); rotation != nil {
		result.Rotation = rotation
		if *rotation%180 != 0 {
			result.Width, result.Height = result.Height, result.Width
		}
	}

	// Strict binary classification: anything not taller than wide, squares
	// included, counts as horizontal.
	if float64(result.Width)/float64(result.Height) < 1 {
		result.Orientation = OrientationVertical
	} else {
		result.Orientation = OrientationHorizontal
	}
	return result
}

func streamRotation(stream *ffprobeStream) *int {
	for _, sideData := range stream.SideDataList {
		if sideData.Rotation != nil {
			rotation := *sideData.Rotation
			if rotation < 0 {
				rotation = -rotation
			}
			rotation %= 360
			return &rotation
		}
	}
	if stream.Tags.Rotate != "" {
		if rotation, err := strconv.Atoi(stream.Tags.Rotate); err == nil {
			if rotation < 0 {
				rotation = -rotation
			}
			rotation %= 360
			return &rotation
		}
	}
	return nil
}

func isRemote(handle string) bool {
	return strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://")
}

// Short-form platforms skew vertical, so that is the conservative default
// when the real bytes are unreachable.
func degradedResult() ProbeResult {
	return ProbeResult{
		Orientation: OrientationVertical,
		Degraded:    true,
	}
}
