package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"podscript/internal/podcast"
	"podscript/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	outputDir  string
	server     *chatServer
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY", "PODCAST_CREATOR_PROXY"} {
		t.Setenv(key, "")
	}

	server := newChatServer(t)
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "podscript.toml"),
		outputDir:  filepath.Join(base, "episodes"),
		server:     server,
	}
	content := fmt.Sprintf(`[paths]
output_dir = %q
state_dir = %q
log_dir = %q
profiles_dir = %q

[llm]
api_key = "test"
base_url = %q
proxy = ""

[outline]
provider = "openai-compatible"
model = "outline-model"

[transcript]
provider = "openai-compatible"
model = "transcript-model"

[retry]
max_attempts = 1

[logging]
level = "error"
`,
		env.outputDir,
		filepath.Join(base, "state"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "profiles"),
		server.URL(),
	)
	testsupport.WriteFile(t, env.configPath, content)
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, e.configPath)
	return stdout, err
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

var (
	segmentCountPattern = regexp.MustCompile(`exactly (\d+) segments`)
	segmentNamePattern  = regexp.MustCompile(`Name: (Segment \d+)`)
)

// chatServer answers OpenAI-style chat completions with outlines,
// transcripts, and health probes, depending on the prompt.
type chatServer struct {
	srv *httptest.Server

	mu        sync.Mutex
	failNamed map[string]bool
	prompts   []string
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	s := &chatServer{failNamed: make(map[string]bool)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *chatServer) URL() string { return s.srv.URL }

// failSegment makes every transcript reply for the named segment use an
// unknown speaker.
func (s *chatServer) failSegment(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNamed[name] = true
}

func (s *chatServer) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *chatServer) handle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user := body.Messages[len(body.Messages)-1].Content

	s.mu.Lock()
	s.prompts = append(s.prompts, user)
	failNamed := s.failNamed
	s.mu.Unlock()

	var reply string
	switch {
	case strings.Contains(user, `{"ok": true}`):
		reply = `{"ok": true}`
	case strings.Contains(user, "Create an outline"):
		n := 3
		if m := segmentCountPattern.FindStringSubmatch(user); m != nil {
			n, _ = strconv.Atoi(m[1])
		}
		reply = testsupport.OutlineJSON(testsupport.Segments(n)...)
	default:
		speakers := []string{"Dr. Sarah Chen", "Marcus Rivera"}
		if m := segmentNamePattern.FindStringSubmatch(user); m != nil && failNamed[m[1]] {
			speakers = []string{"Narrator"}
		}
		reply = testsupport.TranscriptJSON(testsupport.Turns(3, speakers...)...)
	}

	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": reply},
			"finish_reason": "stop",
		}},
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func decodeSummary(t *testing.T, out string) episodeSummary {
	t.Helper()
	var summary episodeSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	return summary
}

func readTranscript(t *testing.T, dir string) []podcast.Turn {
	t.Helper()
	var doc struct {
		Transcript []podcast.Turn `json:"transcript"`
	}
	raw := testsupport.ReadFile(t, filepath.Join(dir, "transcript.json"))
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	return doc.Transcript
}
