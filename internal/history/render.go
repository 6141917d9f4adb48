package history

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/manash/splendid/pkg/models"
)

// Previewer shows an output inline; display.Displayer satisfies it.
type Previewer interface {
	Show(ctx context.Context, ref string) error
}

type Renderer struct {
	out     io.Writer
	preview Previewer
	logger  *log.Logger
	now     func() time.Time
}

// NewRenderer prints history to out. A nil preview disables inline images.
func NewRenderer(out io.Writer, preview Previewer, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{out: out, preview: preview, logger: logger, now: time.Now}
}

func (r *Renderer) Render(ctx context.Context, entries []Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for i, e := range entries {
		r.renderEntry(ctx, i+1, e)
	}
}

// renderEntry prints one entry under its 1-based position, which is what
// the compare command refers to.
func (r *Renderer) renderEntry(ctx context.Context, n int, e Entry) {
	m := e.Message
	header := fmt.Sprintf("#%d [%s]", n, m.Role)
	if !m.Timestamp.IsZero() {
		header += " " + humanize.RelTime(m.Timestamp.Time, r.now(), "ago", "from now")
	}
	fmt.Fprintln(r.out, header)
	if content := strings.TrimSpace(m.Content); content != "" {
		fmt.Fprintf(r.out, "  %s\n", content)
	}

	switch e.Kind {
	case EntryComparison:
		fmt.Fprintf(r.out, "  before: %s\n", shortRef(e.Comparison.BeforeURL))
		fmt.Fprintf(r.out, "  after:  %s\n", shortRef(e.Comparison.AfterURL))
		fmt.Fprintf(r.out, "  (compare %d)\n", n)
		r.show(ctx, e.Comparison.AfterURL)
	case EntryMedia:
		for i, ref := range m.ImageURLs {
			fmt.Fprintf(r.out, "  image %d: %s\n", i+1, shortRef(ref))
			if m.Role == models.RoleAssistant {
				r.show(ctx, ref)
			}
		}
		for i, ref := range m.VideoURLs {
			fmt.Fprintf(r.out, "  video %d: %s\n", i+1, shortRef(ref))
		}
	}
}

func (r *Renderer) show(ctx context.Context, ref string) {
	if r.preview == nil {
		return
	}
	if err := r.preview.Show(ctx, ref); err != nil {
		r.logger.Debug("preview failed", "err", err)
	}
}

// shortRef keeps data URLs from flooding the terminal.
func shortRef(ref string) string {
	if models.IsDataURL(ref) {
		header, payload, _ := strings.Cut(ref, ",")
		return fmt.Sprintf("%s,… (%s)", header, humanize.Bytes(uint64(len(payload)*3/4)))
	}
	return ref
}
