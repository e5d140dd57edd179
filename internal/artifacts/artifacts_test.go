package artifacts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"podscript/internal/artifacts"
	"podscript/internal/config"
	"podscript/internal/podcast"
	"podscript/internal/services"
	"podscript/internal/testsupport"
)

func sampleEpisode() artifacts.Episode {
	speakers := testsupport.Speakers()
	return artifacts.Episode{
		RunID:    "run-1",
		Name:     "Renewable Energy",
		Briefing: "Discuss the future of renewable energy",
		Content:  []string{"Solar capacity doubled.", "Wind keeps getting cheaper."},
		Speakers: speakers,
		Outline:  podcast.Outline{Segments: testsupport.Segments(2)},
		Transcript: podcast.Transcript{
			Turns: testsupport.Turns(4, podcast.SpeakerNames(speakers)...),
		},
		Skipped: []int{1},
	}
}

func TestWriterWritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "renewable-energy")
	w := artifacts.NewWriter(nil)

	paths, err := w.Write(dir, sampleEpisode())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("expected 4 files, got %v", paths)
	}
	if got := testsupport.ReadFile(t, filepath.Join(dir, artifacts.BriefingFile)); got != "Discuss the future of renewable energy\n" {
		t.Fatalf("unexpected briefing %q", got)
	}
	if got := testsupport.ReadFile(t, filepath.Join(dir, artifacts.ContentFile)); got != "Solar capacity doubled.\n\n---\n\nWind keeps getting cheaper.\n" {
		t.Fatalf("unexpected content %q", got)
	}

	var outline podcast.Outline
	if err := json.Unmarshal([]byte(testsupport.ReadFile(t, filepath.Join(dir, artifacts.OutlineFile))), &outline); err != nil {
		t.Fatalf("decode outline: %v", err)
	}
	if len(outline.Segments) != 2 || outline.Segments[1].Name != "Segment 2" {
		t.Fatalf("unexpected outline %+v", outline)
	}

	var doc struct {
		RunID      string            `json:"run_id"`
		Transcript []podcast.Turn    `json:"transcript"`
		Speakers   []podcast.Speaker `json:"speakers"`
		Skipped    []int             `json:"skipped_segments"`
	}
	if err := json.Unmarshal([]byte(testsupport.ReadFile(t, filepath.Join(dir, artifacts.TranscriptFile))), &doc); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if doc.RunID != "run-1" || len(doc.Transcript) != 4 || len(doc.Speakers) != 2 || len(doc.Skipped) != 1 {
		t.Fatalf("unexpected transcript document %+v", doc)
	}
}

func TestWriterSkipsEmptyStages(t *testing.T) {
	dir := t.TempDir()
	ep := sampleEpisode()
	ep.Outline = podcast.Outline{}
	ep.Transcript = podcast.Transcript{}

	paths, err := artifacts.NewWriter(nil).Write(dir, ep)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected only text artifacts, got %v", paths)
	}
	if _, err := os.Stat(filepath.Join(dir, artifacts.OutlineFile)); !os.IsNotExist(err) {
		t.Fatalf("outline.json should not exist: %v", err)
	}
}

func TestWriterRespectsLock(t *testing.T) {
	dir := t.TempDir()
	held := flock.New(filepath.Join(dir, artifacts.LockFile))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	if _, err := artifacts.NewWriter(nil).Write(dir, sampleEpisode()); !errors.Is(err, artifacts.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestWriterRequiresDirectory(t *testing.T) {
	if _, err := artifacts.NewWriter(nil).Write(" ", sampleEpisode()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type upload struct {
	bucket, key, contentType, body string
}

type memoryUploader struct {
	mu      sync.Mutex
	uploads []upload
	err     error
}

func (m *memoryUploader) Upload(_ context.Context, bucket, key, contentType string, body io.Reader) error {
	if m.err != nil {
		return m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	m.uploads = append(m.uploads, upload{bucket, key, contentType, buf.String()})
	m.mu.Unlock()
	return nil
}

func TestPublishUploadsArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "renewable-energy")
	if _, err := artifacts.NewWriter(nil).Write(dir, sampleEpisode()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	up := &memoryUploader{}
	pub, err := artifacts.NewGCSPublisher(context.Background(), config.Publish{GCSBucket: "shows"}, artifacts.WithUploader(up))
	if err != nil {
		t.Fatalf("NewGCSPublisher: %v", err)
	}
	defer pub.Close()

	uris, err := pub.Publish(context.Background(), dir, "/podcasts/")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(uris) != 4 || uris[0] != "gs://shows/podcasts/renewable-energy/briefing.txt" {
		t.Fatalf("unexpected uris %v", uris)
	}
	for _, u := range up.uploads {
		if u.bucket != "shows" {
			t.Fatalf("unexpected bucket %q", u.bucket)
		}
		if strings.HasSuffix(u.key, ".json") && u.contentType != "application/json" {
			t.Fatalf("%s uploaded as %s", u.key, u.contentType)
		}
		if strings.HasSuffix(u.key, ".txt") && !strings.HasPrefix(u.contentType, "text/plain") {
			t.Fatalf("%s uploaded as %s", u.key, u.contentType)
		}
		if strings.Contains(u.key, artifacts.LockFile) {
			t.Fatal("lock file must not be published")
		}
	}
	if up.uploads[0].body != "Discuss the future of renewable energy\n" {
		t.Fatalf("unexpected uploaded body %q", up.uploads[0].body)
	}
}

func TestPublishErrors(t *testing.T) {
	if _, err := artifacts.NewGCSPublisher(context.Background(), config.Publish{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without bucket, got %v", err)
	}

	up := &memoryUploader{}
	pub, err := artifacts.NewGCSPublisher(context.Background(), config.Publish{GCSBucket: "shows"}, artifacts.WithUploader(up))
	if err != nil {
		t.Fatalf("NewGCSPublisher: %v", err)
	}
	if _, err := pub.Publish(context.Background(), t.TempDir(), "podcasts"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty dir, got %v", err)
	}

	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, artifacts.BriefingFile), "hi")
	up.err = errors.New("403 forbidden")
	if _, err := pub.Publish(context.Background(), dir, "podcasts"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
