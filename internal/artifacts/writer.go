package artifacts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"podscript/internal/fileutil"
	"podscript/internal/logging"
	"podscript/internal/podcast"
	"podscript/internal/services"
)

// Artifact file names inside an episode directory.
const (
	BriefingFile   = "briefing.txt"
	ContentFile    = "content.txt"
	OutlineFile    = "outline.json"
	TranscriptFile = "transcript.json"
	LockFile       = ".podscript.lock"
)

// Files lists the artifacts in the order they are written and published.
var Files = []string{BriefingFile, ContentFile, OutlineFile, TranscriptFile}

const contentSeparator = "\n\n---\n\n"

// ErrLocked is returned when another process holds the episode directory lock.
var ErrLocked = errors.New("episode directory is locked by another process")

// Episode is everything written for one run.
type Episode struct {
	RunID      string
	Name       string
	Briefing   string
	Content    []string
	Speakers   []podcast.Speaker
	Outline    podcast.Outline
	Transcript podcast.Transcript
	Skipped    []int
}

// transcriptDocument is the transcript.json layout. Speakers travel with the
// dialogue so the audio consumer gets voice settings without the profile.
type transcriptDocument struct {
	RunID      string                    `json:"run_id,omitempty"`
	Name       string                    `json:"episode_name,omitempty"`
	Transcript []podcast.Turn            `json:"transcript"`
	Speakers   []podcast.Speaker         `json:"speakers,omitempty"`
	Skipped    []int                     `json:"skipped_segments,omitempty"`
	Params     *podcast.GenerationParams `json:"params,omitempty"`
}

// Writer writes episode artifacts.
type Writer struct {
	logger *slog.Logger
}

// NewWriter returns a Writer logging through logger.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logging.NewComponentLogger(logger, "artifacts")}
}

// Write creates dir if needed and writes every artifact into it atomically.
// outline.json and transcript.json are skipped when the run produced nothing
// for them. It returns the paths written.
func (w *Writer) Write(dir string, ep Episode) ([]string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrValidation, "artifacts", "write", "output directory required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(w.logger, "failed to release output lock", "artifact_lock",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the lock file is released when the process exits"),
			)
		}
	}()

	var written []string
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write(BriefingFile, func(path string) error {
		return fileutil.WriteAtomic(path, []byte(withNewline(ep.Briefing)), 0o644)
	}); err != nil {
		return written, err
	}
	if err := write(ContentFile, func(path string) error {
		return fileutil.WriteAtomic(path, []byte(withNewline(strings.Join(ep.Content, contentSeparator))), 0o644)
	}); err != nil {
		return written, err
	}
	if len(ep.Outline.Segments) > 0 {
		if err := write(OutlineFile, func(path string) error {
			return fileutil.WriteJSONAtomic(path, ep.Outline, 0o644)
		}); err != nil {
			return written, err
		}
	}
	if len(ep.Transcript.Turns) > 0 {
		doc := transcriptDocument{
			RunID:      ep.RunID,
			Name:       ep.Name,
			Transcript: ep.Transcript.Turns,
			Speakers:   ep.Speakers,
			Skipped:    ep.Skipped,
			Params:     ep.Transcript.Params,
		}
		if err := write(TranscriptFile, func(path string) error {
			return fileutil.WriteJSONAtomic(path, doc, 0o644)
		}); err != nil {
			return written, err
		}
	}

	w.logger.Info("episode artifacts written",
		logging.String(logging.FieldEventType, "artifacts_written"),
		logging.String(logging.FieldRunID, ep.RunID),
		logging.String("dir", dir),
		logging.Int("files", len(written)),
	)
	return written, nil
}

func withNewline(s string) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	return s + "\n"
}
