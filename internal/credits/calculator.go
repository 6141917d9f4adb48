package credits

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/webp"

	"github.com/manash/splendid/internal/request"
	"github.com/manash/splendid/pkg/models"
)

// Cost returns the credits charged per unit. Unknown and unmetered models
// are free. An unknown variant falls back to the first one; megapixels <= 0
// means the size is unknown and the highest tier applies.
func Cost(key, variant string, megapixels float64) float64 {
	m, ok := Lookup(key)
	if !ok || m.Unmetered {
		return 0
	}

	if len(m.Variants) > 0 {
		for _, v := range m.Variants {
			if v.Name == variant {
				return v.CreditsPerUnit
			}
		}
		return m.Variants[0].CreditsPerUnit
	}

	if len(m.Tiers) > 0 {
		if megapixels > 0 {
			for _, t := range m.Tiers {
				if t.OrAbove && megapixels >= t.MaxMegapixels {
					return t.CreditsPerUnit
				}
				if megapixels <= t.MaxMegapixels {
					return t.CreditsPerUnit
				}
			}
		}
		return m.Tiers[len(m.Tiers)-1].CreditsPerUnit
	}

	return m.CreditsPerUnit
}

func IsFree(key string) bool {
	m, ok := Lookup(key)
	return ok && m.Unmetered
}

// Round rounds a charge up to the next credit step.
func Round(credits float64) float64 {
	return math.Ceil(credits/RoundingStep) * RoundingStep
}

func ToEuro(credits float64) float64 {
	return credits * EuroPerCredit
}

type Quote struct {
	ModelKey   string
	Units      float64
	Variant    string
	Megapixels float64
	PerUnit    float64
	Credits    float64
}

func (q Quote) String() string {
	if q.Credits == 0 {
		return "free"
	}
	s := fmt.Sprintf("%.1f credits", q.Credits)
	if q.Units != 1 {
		s += fmt.Sprintf(" (%.0f x %.2f)", q.Units, q.PerUnit)
	}
	return s
}

// Estimate prices a validated request from its descriptor billing rules.
func Estimate(d *request.Descriptor, opts map[string]any, media map[string]*models.UploadedMedia) Quote {
	b := d.Billing
	q := Quote{ModelKey: b.ModelKey, Units: 1}

	if b.UnitsOption != "" {
		if n, ok := opts[b.UnitsOption].(int); ok && n > 0 {
			q.Units = float64(n)
		}
	}

	if b.VariantOption != "" {
		if v, ok := opts[b.VariantOption]; ok {
			raw := fmt.Sprint(v)
			if mapped, ok := b.Variants[raw]; ok {
				raw = mapped
			}
			q.Variant = raw
		}
	}

	if b.Megapixels {
		scale := 1
		if n, ok := opts["scale_factor"].(int); ok && n > 0 {
			scale = n
		}
		for _, slot := range d.Slots {
			if m := media[slot.Name]; m != nil {
				q.Megapixels = outputMegapixels(m, scale)
				break
			}
		}
	}

	q.PerUnit = Cost(q.ModelKey, q.Variant, q.Megapixels)
	q.Credits = Round(q.PerUnit * q.Units)
	return q
}

func outputMegapixels(m *models.UploadedMedia, scale int) float64 {
	data, err := m.Bytes()
	if err != nil {
		return 0
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	w := float64(cfg.Width * scale)
	h := float64(cfg.Height * scale)
	return w * h / 1_000_000
}

type Example struct {
	Model       string
	Unit        string
	Count       int
	CostPerUnit float64
}

// UsageExamples shows what the starting balance buys on a few models.
func UsageExamples() []Example {
	type spec struct {
		model, unit, key, variant string
		seconds                   float64
		megapixels                float64
	}
	specs := []spec{
		{"NanoBanana", "images", "nano_banana", "", 1, 0},
		{"SORA 2", "5s videos", "sora_2", "", 5, 0},
		{"Google VEO 3.1", "5s videos (no audio)", "google_veo_3_1", "without_audio", 5, 0},
		{"Kling AI v2.1 (standard)", "5s videos", "kling_ai_v2_1", "standard", 5, 0},
		{"Seedream 4", "images", "seedream_4", "", 1, 0},
		{"Flux Kontext Pro", "images", "flux_kontext_pro", "", 1, 0},
		{"Grok 2 Image", "images", "grok_2_image", "", 1, 0},
		{"Image Upscaler (small images)", "images", "image_upscaler", "", 1, 2},
	}

	examples := make([]Example, 0, len(specs))
	for _, s := range specs {
		per := Cost(s.key, s.variant, s.megapixels) * s.seconds
		examples = append(examples, Example{
			Model:       s.model,
			Unit:        s.unit,
			Count:       int(InitialCredits / per),
			CostPerUnit: per,
		})
	}
	return examples
}
