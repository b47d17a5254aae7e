package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	yt "github.com/kkdai/youtube/v2"

	"github.com/codelens/codelens/internal/models"
)

// LibraryStrategy is the fallback acquisition path: a pure-Go extraction
// backend that does not depend on an external binary. Quality selection is
// simpler than yt-dlp's, so it runs second.
type LibraryStrategy struct {
	client yt.Client
}

func NewLibraryStrategy() *LibraryStrategy {
	return &LibraryStrategy{}
}

func (s *LibraryStrategy) Name() string { return "youtube-library" }

func (s *LibraryStrategy) Fetch(ctx context.Context, videoID, destDir string, mode Mode, onProgress ProgressFunc) (models.MediaAsset, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("get video info: %w", err)
	}

	format, container, err := pickFormat(video, mode)
	if err != nil {
		return models.MediaAsset{}, err
	}

	stream, size, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	base := fmt.Sprintf("%s_%d_%s.%s", videoID, time.Now().UnixNano(), uuid.NewString()[:8], container)
	outPath := filepath.Join(destDir, base)
	out, err := os.Create(outPath)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	written, err := copyWithProgress(ctx, out, stream, size, onProgress)
	if err != nil {
		os.Remove(outPath)
		return models.MediaAsset{}, fmt.Errorf("stream copy: %w", err)
	}

	return models.MediaAsset{
		Path:            outPath,
		Container:       container,
		SizeBytes:       written,
		DurationSeconds: video.Duration.Seconds(),
		HasVideo:        mode == AudioVideo,
	}, nil
}

func pickFormat(video *yt.Video, mode Mode) (*yt.Format, string, error) {
	if mode == AudioVideo {
		formats := video.Formats.Type("video/mp4").WithAudioChannels()
		if len(formats) == 0 {
			return nil, "", fmt.Errorf("no muxed mp4 format available")
		}
		formats.Sort()
		return &formats[0], "mp4", nil
	}

	var best *yt.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("no audio-only format available")
	}
	container := "webm"
	if strings.Contains(best.MimeType, "mp4") {
		container = "m4a"
	}
	return best, container, nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, 256*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				onProgress(float64(written) / float64(total) * 100)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
