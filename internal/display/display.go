package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/webp"
)

var ErrNotImage = errors.New("content is not a displayable image")

// Fetcher resolves an output reference (URL or data URL) into bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type Displayer struct {
	out     io.Writer
	fetcher Fetcher
	columns int
}

func New(out io.Writer, fetcher Fetcher) *Displayer {
	return &Displayer{out: out, fetcher: fetcher}
}

// SetColumns limits previews to a width in terminal cells.
func (d *Displayer) SetColumns(cols int) {
	d.columns = cols
}

func (d *Displayer) Show(ctx context.Context, ref string) error {
	if d.fetcher == nil {
		return fmt.Errorf("no fetcher configured")
	}
	data, err := d.fetcher.Fetch(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to fetch preview: %w", err)
	}
	return d.ShowBytes(data)
}

func (d *Displayer) ShowAll(ctx context.Context, refs []string) error {
	for i, ref := range refs {
		if err := d.Show(ctx, ref); err != nil {
			return fmt.Errorf("failed to display output %d: %w", i+1, err)
		}
	}
	return nil
}

// ShowBytes previews encoded image bytes. Formats other than PNG are
// re-encoded since the protocol only carries PNG here.
func (d *Displayer) ShowBytes(data []byte) error {
	pngData, err := ToPNG(data)
	if err != nil {
		return err
	}
	return d.write(0, pngData)
}

func (d *Displayer) ShowImage(img image.Image) error {
	return d.ShowFrame(0, img)
}

// ShowFrame draws img under a fixed image id, replacing whatever was last
// drawn with that id. Id 0 always adds a new image.
func (d *Displayer) ShowFrame(id uint32, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return d.write(id, buf.Bytes())
}

// Clear removes the image drawn under id.
func (d *Displayer) Clear(id uint32) error {
	return NewKittyEncoder(d.out).WithID(id).Delete()
}

func (d *Displayer) write(id uint32, pngData []byte) error {
	enc := NewKittyEncoder(d.out).WithColumns(d.columns).WithID(id)
	if err := enc.Encode(pngData); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	fmt.Fprintln(d.out)
	return nil
}

func ToPNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrNotImage
	}
	if bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	supportedPrograms := []string{"kitty", "ghostty", "iterm.app", "wezterm"}

	for _, prog := range supportedPrograms {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
