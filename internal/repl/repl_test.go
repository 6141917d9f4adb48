package repl

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/internal/api"
	"github.com/manash/splendid/internal/auth"
	"github.com/manash/splendid/internal/display"
	"github.com/manash/splendid/internal/media"
	"github.com/manash/splendid/internal/request"
	"github.com/manash/splendid/internal/session"
	"github.com/manash/splendid/internal/studio"
	"github.com/manash/splendid/pkg/models"
)

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeBackend plays sessions, generator and history for the studio. Each
// generation appends the user input and one assistant output.
type fakeBackend struct {
	mu      sync.Mutex
	n       int
	msgs    map[string][]models.Message
	output  string
	failGen bool
}

func (f *fakeBackend) Ensure(ctx context.Context, tool *models.Tool) (string, error) {
	return f.Create(ctx, tool)
}

func (f *fakeBackend) Create(ctx context.Context, tool *models.Tool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("%s-%d", tool.Slug, f.n), nil
}

func (f *fakeBackend) Generate(ctx context.Context, token string, req *request.Request) (*api.GenerateResult, error) {
	if f.failGen {
		return nil, fmt.Errorf("%w: upstream unavailable", models.ErrGeneration)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sid := req.Body["session_id"].(string)
	user := models.Message{ID: "u", Role: models.RoleUser, Content: fmt.Sprint(req.Body["prompt"])}
	if in, ok := req.Body["image_data"].(string); ok {
		user.ImageURLs = []string{in}
	}
	f.msgs[sid] = append(f.msgs[sid], user,
		models.Message{ID: "a", Role: models.RoleAssistant, ImageURLs: []string{f.output}})
	return &api.GenerateResult{SessionID: sid, ImageURLs: []string{f.output}}, nil
}

func (f *fakeBackend) Load(ctx context.Context, tool *models.Tool, sid string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message{}, f.msgs[sid]...), nil
}

type testEnv struct {
	repl    *REPL
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	backend *fakeBackend
	journal *session.Journal
	dir     string
}

func testREPL(t *testing.T, input string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	backend := &fakeBackend{
		msgs:   make(map[string][]models.Message),
		output: models.EncodeDataURL("image/png", pngBytes(t, color.RGBA{R: 255, A: 255})),
	}

	store, err := session.NewStoreWithPath(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	journal := session.NewJournal(store)

	logger := log.New(io.Discard)
	st, err := studio.New(studio.Config{
		Sessions:  backend,
		Generator: backend,
		History:   backend,
		Journal:   journal,
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	saver := media.NewSaver(media.NewFetcher(false), "")

	r := New(&Config{
		In:        strings.NewReader(input),
		Out:       out,
		Err:       errBuf,
		Studio:    st,
		Auth:      auth.NewContext(nil, auth.NewMemoryTokenStore(""), logger),
		Displayer: display.New(out, saver.Fetcher()),
		Saver:     saver,
		Journal:   journal,
		Logger:    logger,
	})

	return &testEnv{repl: r, out: out, errOut: errBuf, backend: backend, journal: journal, dir: dir}
}

func (e *testEnv) run(t *testing.T) {
	t.Helper()
	if err := e.repl.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestNew(t *testing.T) {
	env := testREPL(t, "")
	if len(env.repl.commands) == 0 {
		t.Error("New() commands not registered")
	}
}

func TestREPL_CommandsRegistered(t *testing.T) {
	env := testREPL(t, "")

	expectedCommands := []string{
		"tools", "ls",
		"use", "tool", "t",
		"prompt", "p",
		"set", "opt",
		"attach", "a", "upload",
		"detach", "rm",
		"quote", "$", "cost",
		"generate", "gen", "g", "submit",
		"history", "h", "hist",
		"show", "display", "view",
		"save", "s",
		"compare", "cmp",
		"slide", "drag",
		"fullscreen", "fs",
		"download", "dl",
		"new", "reset",
		"login", "logout",
		"whoami", "me",
		"credits", "balance",
		"journal", "j",
		"help", "?",
		"quit", "exit", "q",
	}

	for _, cmd := range expectedCommands {
		if _, ok := env.repl.commands[cmd]; !ok {
			t.Errorf("Command %q not registered", cmd)
		}
	}
}

func TestREPL_Run_Quit(t *testing.T) {
	env := testREPL(t, "quit\n")
	env.run(t)

	if !strings.Contains(env.out.String(), "Goodbye!") {
		t.Error("Run() quit command did not output 'Goodbye!'")
	}
}

func TestREPL_Run_Help(t *testing.T) {
	env := testREPL(t, "help\nquit\n")
	env.run(t)

	output := env.out.String()
	for _, want := range []string{"Available commands", "generate", "compare", "slide"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestREPL_Run_UnknownCommand(t *testing.T) {
	env := testREPL(t, "unknowncommand\nquit\n")
	env.run(t)

	if !strings.Contains(env.errOut.String(), "unknown command") {
		t.Errorf("stderr = %q", env.errOut.String())
	}
}

func TestREPL_Run_EmptyLine(t *testing.T) {
	env := testREPL(t, "\n\n\nquit\n")
	env.run(t)
}

func TestREPL_Stop(t *testing.T) {
	env := testREPL(t, "")
	env.repl.running = true
	env.repl.Stop()

	if env.repl.running {
		t.Error("Stop() did not stop the REPL")
	}
}

func TestREPL_Prompt(t *testing.T) {
	env := testREPL(t, "use grok\nquit\n")
	env.run(t)

	if !strings.Contains(env.out.String(), "splendid [grok]> ") {
		t.Errorf("prompt not updated: %q", env.out.String())
	}
}

func TestToolsCommand(t *testing.T) {
	env := testREPL(t, "use kling\ntools video\ntools nonsense\nquit\n")
	env.run(t)

	out := env.out.String()
	if !strings.Contains(out, "> kling") {
		t.Error("active tool not marked")
	}
	if !strings.Contains(out, "google-veo") || strings.Contains(out, "nanobanana ") {
		t.Errorf("category filter wrong: %q", out)
	}
	if !strings.Contains(env.errOut.String(), "unknown category") {
		t.Error("invalid category accepted")
	}
}

func TestCommandsRequireTool(t *testing.T) {
	for _, line := range []string{"set", "attach x.png", "generate hello", "history", "save", "new"} {
		t.Run(line, func(t *testing.T) {
			env := testREPL(t, line+"\nquit\n")
			env.run(t)
			if !strings.Contains(env.errOut.String(), "no tool selected") {
				t.Errorf("stderr = %q", env.errOut.String())
			}
		})
	}
}

func TestSetCommand(t *testing.T) {
	env := testREPL(t, "use kling\nset duration 10\nset\nset mode ultra\nset duration\nquit\n")
	env.run(t)

	out := env.out.String()
	if !strings.Contains(out, "duration = 10") {
		t.Error("option not set")
	}
	if !strings.Contains(out, "10 *") || !strings.Contains(out, "@start") {
		t.Errorf("option listing = %q", out)
	}
	if !strings.Contains(out, "duration reset to default") {
		t.Error("option not reset")
	}
	if !strings.Contains(env.errOut.String(), "mode") {
		t.Error("invalid enum accepted")
	}
}

func TestGenerate_ValidationNotice(t *testing.T) {
	env := testREPL(t, "use grok\ngenerate\nquit\n")
	env.run(t)

	if !strings.Contains(env.errOut.String(), "Warning:") || !strings.Contains(env.errOut.String(), "prompt") {
		t.Errorf("stderr = %q", env.errOut.String())
	}
}

func TestGenerate_FailureKeepsPrompt(t *testing.T) {
	env := testREPL(t, "use grok\ngenerate a castle\nprompt\nquit\n")
	env.backend.failGen = true
	env.run(t)

	if !strings.Contains(env.errOut.String(), "!! Grok generation failed") {
		t.Errorf("stderr = %q", env.errOut.String())
	}
	if !strings.Contains(env.out.String(), "Prompt: a castle") {
		t.Error("prompt was cleared after a failure")
	}
}

func TestUpscaleAndCompareFlow(t *testing.T) {
	script := strings.Join([]string{
		"use image-upscaler",
		"attach in.png",
		"quote",
		"generate",
		"history",
		"compare 2",
		"slide 10 30",
		"fullscreen",
		"download",
		"compare close",
		"journal",
		"quit",
	}, "\n") + "\n"
	env := testREPL(t, script)
	if err := os.WriteFile(filepath.Join(env.dir, "in.png"), pngBytes(t, color.RGBA{B: 255, A: 255}), 0644); err != nil {
		t.Fatal(err)
	}
	env.run(t)

	if s := env.errOut.String(); s != "" {
		t.Fatalf("unexpected errors: %q", s)
	}
	out := env.out.String()
	for _, want := range []string{
		"Using Image Upscaler",
		"Attached in.png (image/png",
		"Estimated cost:",
		"Image Upscaler finished with 1 output(s)",
		"#2 [assistant]",
		"(compare 2)",
		"Comparing #2",
		"before | after at 50%",
		"before | after at 30%",
		"[fullscreen]",
		"Saved: image-upscaler-",
		"Comparison closed",
		"succeeded",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	if snap := env.repl.studio.Snapshot(); len(snap.Media) != 0 {
		t.Error("attachment kept after a successful generation")
	}
	matches, _ := filepath.Glob(filepath.Join(env.dir, "image-upscaler-*.png"))
	if len(matches) != 1 {
		t.Errorf("downloaded files = %v", matches)
	}
}

func TestCompare_Errors(t *testing.T) {
	env := testREPL(t, "use grok\ngenerate a castle\ncompare 2\ncompare 9\nslide 20\ndownload\nquit\n")
	env.run(t)

	errOut := env.errOut.String()
	if !strings.Contains(errOut, "message #2 has no before/after pair") {
		t.Errorf("grok output paired: %q", errOut)
	}
	if !strings.Contains(errOut, "no comparison open") {
		t.Error("slide without comparison accepted")
	}
}

func TestAccountCommands_LoggedOut(t *testing.T) {
	env := testREPL(t, "whoami\ncredits\nlogin\nquit\n")
	env.run(t)

	if !strings.Contains(env.out.String(), "Not logged in") {
		t.Error("whoami did not report logged out")
	}
	errOut := env.errOut.String()
	if !strings.Contains(errOut, auth.ErrNotAuthenticated.Error()) {
		t.Errorf("credits while logged out: %q", errOut)
	}
	if !strings.Contains(errOut, "usage: login") {
		t.Error("login without credential accepted")
	}
}

func TestParseIndex(t *testing.T) {
	n, rest, err := parseIndex([]string{"#3", "out.png"})
	if err != nil || n != 3 || len(rest) != 1 {
		t.Errorf("parseIndex() = %d, %v, %v", n, rest, err)
	}
	n, rest, _ = parseIndex([]string{"out.png"})
	if n != 0 || len(rest) != 1 {
		t.Errorf("parseIndex(name) = %d, %v", n, rest)
	}
	if _, _, err := parseIndex([]string{"0"}); err == nil {
		t.Error("parseIndex(0) accepted")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple command",
			input: "generate hello",
			want:  []string{"generate", "hello"},
		},
		{
			name:  "double quotes",
			input: `generate "hello world"`,
			want:  []string{"generate", "hello world"},
		},
		{
			name:  "single quotes",
			input: `prompt 'hello world'`,
			want:  []string{"prompt", "hello world"},
		},
		{
			name:  "multiple arguments",
			input: "attach start in.png",
			want:  []string{"attach", "start", "in.png"},
		},
		{
			name:  "quoted option value",
			input: `set negative_prompt "blurry, low quality"`,
			want:  []string{"set", "negative_prompt", "blurry, low quality"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  nil,
		},
		{
			name:  "multiple spaces",
			input: "generate    test    prompt",
			want:  []string{"generate", "test", "prompt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommand(tt.input)
			if len(got) != len(tt.want) {
				t.Errorf("parseCommand() = %v, want %v", got, tt.want)
				return
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseCommand()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommand_Interface(t *testing.T) {
	for _, cmd := range allCommands() {
		if cmd.Name() == "" || cmd.Description() == "" || cmd.Usage() == "" {
			t.Errorf("command %T has empty metadata", cmd)
		}
	}
}
