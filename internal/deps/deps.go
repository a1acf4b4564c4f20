// Package deps reports whether the external binaries veritas shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"veritas/internal/config"
)

// Requirement defines an external binary veritas relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries used by the configured collaborators.
// ffmpeg and ffprobe are always required; the downloader and transcriber are
// optional because a local file can be analysed without them.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Decodes sampled frames"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Reads stream dimensions and frame rate"},
		{Name: "yt-dlp", Command: cfg.Acquire.Binary, Description: "Downloads videos by URL", Optional: true},
	}
	if cfg.Transcription.Enabled {
		reqs = append(reqs, Requirement{
			Name:        "whisper-ctranslate2",
			Command:     cfg.Transcription.Binary,
			Description: "Transcribes audio for fact-checking",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the statuses of unavailable, non-optional binaries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

// Check resolves Requirements(cfg) and returns an error naming every missing
// required binary.
func Check(cfg *config.Config) ([]Status, error) {
	statuses := CheckBinaries(Requirements(cfg))
	missing := MissingRequired(statuses)
	if len(missing) == 0 {
		return statuses, nil
	}
	names := make([]string, 0, len(missing))
	for _, status := range missing {
		names = append(names, status.Command)
	}
	return statuses, fmt.Errorf("required binaries not found: %s", strings.Join(names, ", "))
}
