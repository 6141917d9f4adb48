package credits

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/manash/splendid/internal/request"
	"github.com/manash/splendid/pkg/models"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCost(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		variant    string
		megapixels float64
		want       float64
	}{
		{"unmetered", "chatgpt", "", 0, 0},
		{"unknown model", "dall-e-9", "", 0, 0},
		{"flat", "nano_banana", "", 0, 1.5},
		{"variant match", "kling_ai_v2_1", "pro", 0, 3.46},
		{"variant missing falls back to first", "kling_ai_v2_1", "", 0, 1.92},
		{"variant unknown falls back to first", "google_veo_3_1", "8k", 0, 7.69},
		{"tier small", "image_upscaler", "", 2, 1.92},
		{"tier boundary", "image_upscaler", "", 8, 3.85},
		{"tier mid", "image_upscaler", "", 12, 7.69},
		{"tier between last two", "image_upscaler", "", 20, 15.38},
		{"tier or above", "image_upscaler", "", 40, 15.38},
		{"tier unknown size", "image_upscaler", "", 0, 15.38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cost(tt.key, tt.variant, tt.megapixels); !floatEquals(got, tt.want) {
				t.Errorf("Cost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1.5, 1.5},
		{1.92, 2},
		{1.15, 1.5},
		{15.4, 15.5},
		{61.52, 62},
	}
	for _, tt := range tests {
		if got := Round(tt.in); !floatEquals(got, tt.want) {
			t.Errorf("Round(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsFree(t *testing.T) {
	if !IsFree("chatgpt") {
		t.Error("IsFree(chatgpt) = false, want true")
	}
	if IsFree("sora_2") {
		t.Error("IsFree(sora_2) = true, want false")
	}
}

func pngMedia(t *testing.T, w, h int) *models.UploadedMedia {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return models.NewUploadedMedia("in.png", "image/png", buf.Bytes())
}

func TestEstimate(t *testing.T) {
	reg := request.DefaultRegistry()

	estimate := func(kind models.ToolKind, opts map[string]any, media map[string]*models.UploadedMedia) Quote {
		d, ok := reg.Get(kind)
		if !ok {
			t.Fatalf("no descriptor for %s", kind)
		}
		return Estimate(d, opts, media)
	}

	t.Run("veo with audio per second", func(t *testing.T) {
		q := estimate(models.KindGoogleVeo, map[string]any{"duration": 8, "generate_audio": true}, nil)
		if q.Variant != "with_audio" || q.Units != 8 {
			t.Errorf("quote = %+v", q)
		}
		if !floatEquals(q.Credits, Round(15.38*8)) {
			t.Errorf("Credits = %v", q.Credits)
		}
	})

	t.Run("wan size maps to resolution", func(t *testing.T) {
		q := estimate(models.KindAlibabaWan, map[string]any{"duration": 5, "size": "1920*1080"}, nil)
		if q.Variant != "1080p" {
			t.Errorf("Variant = %q, want 1080p", q.Variant)
		}
	})

	t.Run("upscaler megapixels from input", func(t *testing.T) {
		media := map[string]*models.UploadedMedia{"image": pngMedia(t, 1000, 1000)}
		q := estimate(models.KindImageUpscaler, map[string]any{"scale_factor": 2}, media)
		if !floatEquals(q.Megapixels, 4) {
			t.Errorf("Megapixels = %v, want 4", q.Megapixels)
		}
		if !floatEquals(q.Credits, 2) {
			t.Errorf("Credits = %v, want 2", q.Credits)
		}
	})

	t.Run("chat is free", func(t *testing.T) {
		q := estimate(models.KindChatGPT5, nil, nil)
		if q.Credits != 0 || q.String() != "free" {
			t.Errorf("quote = %+v", q)
		}
	})
}

func TestUsageExamples(t *testing.T) {
	examples := UsageExamples()
	if len(examples) == 0 {
		t.Fatal("UsageExamples() returned nothing")
	}
	if examples[0].Model != "NanoBanana" || examples[0].Count != 333 {
		t.Errorf("first example = %+v, want NanoBanana x333", examples[0])
	}
}
