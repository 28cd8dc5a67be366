package ffmpegexec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hadronmedia/recompress/internal/util"
)

// Progress reports encoding progress parsed from ffmpeg's stderr.
type Progress struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	Bitrate      string
	ElapsedSecs  float64
}

// ProgressCallback is invoked with each parsed progress update.
type ProgressCallback func(Progress)

// Result is the outcome of one ffmpeg invocation.
type Result struct {
	Success    bool
	OutputPath string
	Error      error
	Stderr     string
}

var timeRegex = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.?\d*)`)

// RunEncode executes ffmpeg for params, reporting progress via callback.
func RunEncode(ctx context.Context, params *EncodeParams, callback ProgressCallback) Result {
	args := BuildCommand(params)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{Error: fmt.Errorf("ffmpeg stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return Result{Error: fmt.Errorf("ffmpeg start: %w", err)}
	}

	var stderrBuilder strings.Builder
	parseProgress(stderr, &stderrBuilder, params.Duration, callback)

	err = cmd.Wait()
	stderrStr := stderrBuilder.String()

	if err != nil {
		if ctx.Err() != nil {
			return Result{Error: fmt.Errorf("encode cancelled: %w", ctx.Err()), Stderr: stderrStr}
		}
		if strings.Contains(stderrStr, "No streams found") {
			return Result{Error: fmt.Errorf("no streams found in input file"), Stderr: stderrStr}
		}
		return Result{Error: fmt.Errorf("ffmpeg failed: %w", err), Stderr: stderrStr}
	}

	return Result{Success: true, OutputPath: params.OutputPath, Stderr: stderrStr}
}

func parseProgress(stderr io.Reader, stderrBuilder *strings.Builder, duration float64, callback ProgressCallback) {
	reader := bufio.NewReader(stderr)
	var lineBuf strings.Builder

	for {
		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		stderrBuilder.WriteByte(b)

		if b == '\r' || b == '\n' {
			line := lineBuf.String()
			lineBuf.Reset()
			if callback != nil && strings.Contains(line, "frame=") {
				if p := parseProgressLine(line, duration); p != nil {
					callback(*p)
				}
			}
		} else {
			lineBuf.WriteByte(b)
		}
	}
}

func parseProgressLine(line string, duration float64) *Progress {
	var elapsedSecs float64
	if matches := timeRegex.FindStringSubmatch(line); len(matches) >= 2 {
		if secs, ok := util.ParseFFmpegTime(matches[1]); ok {
			elapsedSecs = secs
		}
	}

	var frame uint64
	var fps, speed float32
	var bitrate string

	if idx := strings.Index(line, "frame="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+6:], " ")
		if spaceIdx := strings.IndexAny(remaining, " \t"); spaceIdx > 0 {
			if f, err := strconv.ParseUint(remaining[:spaceIdx], 10, 64); err == nil {
				frame = f
			}
		}
	}
	if idx := strings.Index(line, "fps="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+4:], " ")
		if spaceIdx := strings.IndexAny(remaining, " \t"); spaceIdx > 0 {
			if f, err := strconv.ParseFloat(remaining[:spaceIdx], 32); err == nil {
				fps = float32(f)
			}
		}
	}
	if idx := strings.Index(line, "bitrate="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+8:], " ")
		if spaceIdx := strings.IndexAny(remaining, " \t"); spaceIdx > 0 {
			bitrate = remaining[:spaceIdx]
		}
	}
	if idx := strings.Index(line, "speed="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+6:], " ")
		remaining = strings.TrimSuffix(remaining, "x")
		if spaceIdx := strings.IndexAny(remaining, " \t\rx\n"); spaceIdx > 0 {
			remaining = remaining[:spaceIdx]
		}
		remaining = strings.TrimSuffix(remaining, "x")
		if s, err := strconv.ParseFloat(remaining, 32); err == nil {
			speed = float32(s)
		}
	}

	var percent float32
	if duration > 0 {
		percent = float32((elapsedSecs / duration) * 100)
		if percent > 100 {
			percent = 100
		}
	}

	var eta time.Duration
	if speed > 0 && duration > 0 {
		remainingDuration := duration - elapsedSecs
		eta = time.Duration(remainingDuration/float64(speed)) * time.Second
	}

	return &Progress{
		CurrentFrame: frame, Percent: percent, Speed: speed, FPS: fps,
		ETA: eta, Bitrate: bitrate, ElapsedSecs: elapsedSecs,
	}
}
