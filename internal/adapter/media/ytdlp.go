package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// YtDlpAcquirer implements port.Acquirer using the yt-dlp CLI. Audio is
// extracted to WorkDir; metadata comes from yt-dlp's JSON dump.
type YtDlpAcquirer struct {
	WorkDir string
}

// NewYtDlpAcquirer creates an acquirer writing audio files under workDir.
func NewYtDlpAcquirer(workDir string) *YtDlpAcquirer {
	return &YtDlpAcquirer{WorkDir: workDir}
}

// videoInfo mirrors the subset of yt-dlp's --dump-json output we consume.
type videoInfo struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	UploadDate   string   `json:"upload_date"` // YYYYMMDD
	Duration     float64  `json:"duration"`
	ViewCount    int64    `json:"view_count"`
	LikeCount    int64    `json:"like_count"`
	Categories   []string `json:"categories"`
	Language     string   `json:"language"`
	WebpageURL   string   `json:"webpage_url"`
	ChannelID    string   `json:"channel_id"`
	Channel      string   `json:"channel"`
	ChannelURL   string   `json:"channel_url"`
	ChannelDescr string   `json:"channel_description"`
}

// Fetch downloads the audio track of a video and returns it together with
// the video and channel metadata scraped from the platform.
func (a *YtDlpAcquirer) Fetch(ctx context.Context, videoID string) (*domain.AcquiredVideo, error) {
	info, err := a.dumpInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(a.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	audioPath := filepath.Join(a.WorkDir, info.ID+".mp3")

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-f", "bestaudio",
		"-x", "--audio-format", "mp3",
		"-o", filepath.Join(a.WorkDir, info.ID+".%(ext)s"),
		"--no-playlist",
		videoURL(videoID),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classify(videoID, stderr.String(), err)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("yt-dlp produced no audio for %s: %w", videoID, port.ErrSourceUnavailable)
	}

	uploadDate, _ := time.Parse("20060102", info.UploadDate)
	language := info.Language
	if language == "" {
		language = "en"
	}

	return &domain.AcquiredVideo{
		AudioPath: audioPath,
		Video: domain.Video{
			ID:          info.ID,
			ChannelID:   info.ChannelID,
			Title:       info.Title,
			Description: info.Description,
			UploadDate:  uploadDate,
			Duration:    info.Duration,
			ViewCount:   info.ViewCount,
			LikeCount:   info.LikeCount,
			Categories:  info.Categories,
			Language:    language,
			URL:         info.WebpageURL,
			ExtractedAt: time.Now().UTC(),
		},
		Channel: domain.Channel{
			ID:          info.ChannelID,
			Title:       info.Channel,
			Description: info.ChannelDescr,
			URL:         info.ChannelURL,
		},
	}, nil
}

// ListChannelVideos resolves a channel URL to its video ids without
// downloading anything.
func (a *YtDlpAcquirer) ListChannelVideos(ctx context.Context, channelURL string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp", "--flat-playlist", "--print", "id", channelURL)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, classify(channelURL, stderr.String(), err)
	}

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

func (a *YtDlpAcquirer) dumpInfo(ctx context.Context, videoID string) (*videoInfo, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp", "--dump-json", "--skip-download", videoURL(videoID))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, classify(videoID, stderr.String(), err)
	}

	var info videoInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata for %s: %w", videoID, err)
	}
	return &info, nil
}

// classify maps yt-dlp failures onto the acquirer's error contract.
func classify(subject, stderr string, err error) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "404"):
		return fmt.Errorf("yt-dlp %s: %w", subject, port.ErrVideoNotFound)
	default:
		return fmt.Errorf("yt-dlp %s: %v: %w", subject, err, port.ErrSourceUnavailable)
	}
}

func videoURL(videoID string) string {
	if strings.HasPrefix(videoID, "http://") || strings.HasPrefix(videoID, "https://") {
		return videoID
	}
	return "https://www.youtube.com/watch?v=" + videoID
}
