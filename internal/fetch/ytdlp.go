package fetch

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/execx"
	"github.com/codelens/codelens/internal/models"
	"github.com/codelens/codelens/internal/youtube"
)

// downloadLine matches yt-dlp's --newline progress output,
// e.g. "[download]  42.3% of 12.34MiB at 1.23MiB/s".
var downloadLine = regexp.MustCompile(`\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)

// YtDlpStrategy shells out to yt-dlp, the primary acquisition path.
type YtDlpStrategy struct {
	BinPath string
	Runner  execx.Runner
	Timeout time.Duration
}

func NewYtDlpStrategy(binPath string, runner execx.Runner, timeout time.Duration) *YtDlpStrategy {
	return &YtDlpStrategy{BinPath: binPath, Runner: runner, Timeout: timeout}
}

func (s *YtDlpStrategy) Name() string { return "yt-dlp" }

func (s *YtDlpStrategy) Fetch(ctx context.Context, videoID, destDir string, mode Mode, onProgress ProgressFunc) (models.MediaAsset, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	// Job-unique basename so concurrent jobs never collide even on the
	// same source video.
	base := fmt.Sprintf("%s_%d_%s", videoID, time.Now().UnixNano(), uuid.NewString()[:8])

	var outPath, container string
	var args []string
	switch mode {
	case AudioOnly:
		container = "mp3"
		outPath = filepath.Join(destDir, base+".mp3")
		args = []string{
			"-x", "--audio-format", "mp3", "--audio-quality", "0",
			"--no-playlist", "--newline",
			"-o", filepath.Join(destDir, base+".%(ext)s"),
			youtube.WatchURL(videoID),
		}
	default:
		container = "mp4"
		outPath = filepath.Join(destDir, base+".mp4")
		args = []string{
			"--format", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/mp4",
			"--merge-output-format", "mp4",
			"--no-playlist", "--newline",
			"-o", outPath,
			youtube.WatchURL(videoID),
		}
	}

	res, err := s.Runner.Stream(ctx, func(ev execx.Event) {
		if ev.Stderr || onProgress == nil {
			return
		}
		if m := downloadLine.FindStringSubmatch(ev.Line); m != nil {
			if pct, perr := strconv.ParseFloat(m[1], 64); perr == nil {
				onProgress(pct)
			}
		}
	}, s.BinPath, args...)
	if err != nil {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = err.Error()
		}
		return models.MediaAsset{}, fmt.Errorf("yt-dlp exited %d: %s", res.ExitCode, detail)
	}

	return models.MediaAsset{
		Path:      outPath,
		Container: container,
		HasVideo:  mode == AudioVideo,
	}, nil
}
