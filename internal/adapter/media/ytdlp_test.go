package media

import (
	"errors"
	"testing"

	"github.com/matiasvera/talklens/internal/port"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   error
	}{
		{"unavailable video", "ERROR: Video unavailable", port.ErrVideoNotFound},
		{"missing id", "ERROR: this video does not exist", port.ErrVideoNotFound},
		{"http 404", "HTTP Error 404: Not Found", port.ErrVideoNotFound},
		{"throttled", "ERROR: HTTP Error 429: Too Many Requests", port.ErrSourceUnavailable},
		{"unknown failure", "something else broke", port.ErrSourceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify("vid1", tc.stderr, errors.New("exit status 1"))
			if !errors.Is(got, tc.want) {
				t.Errorf("classify(%q) = %v, want %v", tc.stderr, got, tc.want)
			}
		})
	}
}

func TestVideoURL(t *testing.T) {
	if got := videoURL("abc123"); got != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("unexpected url %q", got)
	}
	full := "https://www.youtube.com/watch?v=abc123"
	if got := videoURL(full); got != full {
		t.Errorf("full url must pass through, got %q", got)
	}
}
