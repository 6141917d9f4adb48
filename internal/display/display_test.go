package display

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"testing"
)

type fakeFetcher struct {
	data  map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	f.calls++
	data, ok := f.data[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{G: 255, A: 255})
	return img
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDisplayer_Show(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeFetcher{data: map[string][]byte{"https://cdn/a.png": encodePNG(t)}}
	d := New(&buf, f)

	if err := d.Show(context.Background(), "https://cdn/a.png"); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b_G") {
		t.Error("output should contain Kitty escape sequence")
	}
}

func TestDisplayer_Show_FetchError(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, &fakeFetcher{})

	if err := d.Show(context.Background(), "https://cdn/missing.png"); err == nil {
		t.Error("expected error for failed fetch")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written on failure")
	}
}

func TestDisplayer_Show_NoFetcher(t *testing.T) {
	if err := New(&bytes.Buffer{}, nil).Show(context.Background(), "x"); err == nil {
		t.Error("expected error without fetcher")
	}
}

func TestDisplayer_ShowAll(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeFetcher{data: map[string][]byte{
		"one": encodePNG(t),
		"two": encodeJPEG(t),
	}}
	d := New(&buf, f)

	if err := d.ShowAll(context.Background(), []string{"one", "two"}); err != nil {
		t.Fatalf("ShowAll() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\x1b_G"); n != 2 {
		t.Errorf("expected 2 escape sequences, got %d", n)
	}
}

func TestDisplayer_ShowAll_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, &fakeFetcher{}).ShowAll(context.Background(), nil); err != nil {
		t.Fatalf("ShowAll() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expected no output for empty refs")
	}
}

func TestDisplayer_Columns(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, nil)
	d.SetColumns(40)

	if err := d.ShowImage(testImage()); err != nil {
		t.Fatalf("ShowImage() error = %v", err)
	}
	if !strings.Contains(buf.String(), "c=40") {
		t.Error("output should carry the column placement")
	}
}

func TestDisplayer_FrameReplacesAndClears(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, nil)

	for range 2 {
		if err := d.ShowFrame(9, testImage()); err != nil {
			t.Fatalf("ShowFrame() error = %v", err)
		}
	}
	if n := strings.Count(buf.String(), "i=9,p=1"); n != 2 {
		t.Errorf("frames addressed to image 9 = %d, want 2", n)
	}

	buf.Reset()
	if err := d.Clear(9); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if !strings.Contains(buf.String(), "a=d,d=I,i=9") {
		t.Errorf("Clear() wrote %q", buf.String())
	}
}

func TestToPNG(t *testing.T) {
	pngData := encodePNG(t)
	got, err := ToPNG(pngData)
	if err != nil || !bytes.Equal(got, pngData) {
		t.Errorf("ToPNG(png) should pass through, err = %v", err)
	}

	got, err = ToPNG(encodeJPEG(t))
	if err != nil {
		t.Fatalf("ToPNG(jpeg) error = %v", err)
	}
	if !bytes.HasPrefix(got, pngMagic) {
		t.Error("ToPNG(jpeg) did not produce PNG")
	}

	if _, err := ToPNG([]byte("not an image")); !errors.Is(err, ErrNotImage) {
		t.Errorf("ToPNG(text) error = %v, want ErrNotImage", err)
	}
	if _, err := ToPNG(nil); !errors.Is(err, ErrNotImage) {
		t.Errorf("ToPNG(nil) error = %v, want ErrNotImage", err)
	}
}

func TestIsTerminalSupported(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected bool
	}{
		{
			name:     "no env vars",
			envVars:  map[string]string{},
			expected: false,
		},
		{
			name:     "kitty terminal program",
			envVars:  map[string]string{"TERM_PROGRAM": "kitty"},
			expected: true,
		},
		{
			name:     "ghostty terminal program",
			envVars:  map[string]string{"TERM_PROGRAM": "ghostty"},
			expected: true,
		},
		{
			name:     "iterm terminal program",
			envVars:  map[string]string{"TERM_PROGRAM": "iTerm.app"},
			expected: true,
		},
		{
			name:     "wezterm terminal program",
			envVars:  map[string]string{"TERM_PROGRAM": "WezTerm"},
			expected: true,
		},
		{
			name:     "kitty window id",
			envVars:  map[string]string{"KITTY_WINDOW_ID": "123"},
			expected: true,
		},
		{
			name:     "iterm session id",
			envVars:  map[string]string{"ITERM_SESSION_ID": "abc"},
			expected: true,
		},
		{
			name:     "term contains kitty",
			envVars:  map[string]string{"TERM": "xterm-kitty"},
			expected: true,
		},
		{
			name:     "term contains ghostty",
			envVars:  map[string]string{"TERM": "ghostty"},
			expected: true,
		},
		{
			name:     "unsupported terminal",
			envVars:  map[string]string{"TERM_PROGRAM": "gnome-terminal"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("TERM_PROGRAM")
			os.Unsetenv("KITTY_WINDOW_ID")
			os.Unsetenv("ITERM_SESSION_ID")
			os.Unsetenv("TERM")

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			result := IsTerminalSupported()
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
