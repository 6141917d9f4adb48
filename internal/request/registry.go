package request

import (
	"sort"

	"github.com/manash/splendid/pkg/models"
)

type Registry struct {
	descriptors map[models.ToolKind]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[models.ToolKind]*Descriptor),
	}
}

func (r *Registry) Register(d *Descriptor) {
	r.descriptors[d.Kind] = d
}

func (r *Registry) Get(kind models.ToolKind) (*Descriptor, bool) {
	d, ok := r.descriptors[kind]
	return d, ok
}

func (r *Registry) Kinds() []models.ToolKind {
	kinds := make([]models.ToolKind, 0, len(r.descriptors))
	for k := range r.descriptors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

var aspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3", "21:9"}

func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&Descriptor{
		Kind:           models.KindNanoBanana,
		RequiresPrompt: true,
		Options: []OptionSpec{
			{Name: "edit_image_url", Type: OptionString, Description: "URL of a previous output to edit"},
			{Name: "edit_message_id", Type: OptionString, Description: "message holding the image to edit"},
		},
		Billing: Billing{ModelKey: "nano_banana"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindNanoBananaPro,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "image", Field: "image_input", Media: models.MediaImage, List: true},
		},
		Options: []OptionSpec{
			{Name: "resolution", Type: OptionEnum, Allowed: []string{"1K", "2K", "4K"}, Default: "2K"},
			{Name: "aspect_ratio", Type: OptionEnum, Allowed: append([]string{"match_input_image"}, aspectRatios...), Default: "1:1"},
			{Name: "output_format", Type: OptionEnum, Allowed: []string{"png", "jpg"}, Default: "png"},
		},
		Billing: Billing{ModelKey: "nano_banana_pro", VariantOption: "resolution"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindChatGPT5,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "image", Field: "image_data", NameField: "image_name", Media: models.MediaImage},
		},
		Billing: Billing{ModelKey: "chatgpt"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindChatGPT51,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "image", Field: "image_data", NameField: "image_name", Media: models.MediaImage},
		},
		Options: []OptionSpec{
			{Name: "reasoning_effort", Type: OptionEnum, Allowed: []string{"none", "low", "medium", "high"}, Default: "none"},
			{Name: "verbosity", Type: OptionEnum, Allowed: []string{"low", "medium", "high"}, Default: "medium"},
		},
		Billing: Billing{ModelKey: "chatgpt51", VariantOption: "reasoning_effort"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindGemini3Pro,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "image", Field: "image_data", NameField: "image_name", Media: models.MediaImage},
		},
		Options: []OptionSpec{
			{Name: "thinking_level", Type: OptionEnum, Allowed: []string{"low", "high"}, Default: "high"},
		},
		Billing: Billing{ModelKey: "gemini3_pro", VariantOption: "thinking_level"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindGoogleVeo,
		RequiresPrompt: true,
		Options: []OptionSpec{
			{Name: "duration", Type: OptionInt, Allowed: []string{"4", "6", "8"}, Default: "8"},
			{Name: "aspect_ratio", Type: OptionEnum, Allowed: []string{"16:9", "9:16"}, Default: "16:9"},
			{Name: "resolution", Type: OptionEnum, Allowed: []string{"720p", "1080p"}, Default: "1080p"},
			{Name: "generate_audio", Type: OptionBool, Default: "true"},
		},
		Billing: Billing{
			ModelKey:      "google_veo_3_1",
			UnitsOption:   "duration",
			VariantOption: "generate_audio",
			Variants:      map[string]string{"true": "with_audio", "false": "without_audio"},
		},
	})

	r.Register(&Descriptor{
		Kind:           models.KindSora2,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "reference", Field: "input_reference", Media: models.MediaImage},
		},
		Options: []OptionSpec{
			{Name: "seconds", Type: OptionInt, Allowed: []string{"4", "8", "12"}, Default: "4"},
			{Name: "aspect_ratio", Type: OptionEnum, Allowed: []string{"landscape", "portrait"}, Default: "landscape"},
		},
		Billing: Billing{ModelKey: "sora_2", UnitsOption: "seconds"},
	})

	r.Register(&Descriptor{
		Kind: models.KindImageUpscaler,
		Slots: []Slot{
			{Name: "image", Field: "image_data", Media: models.MediaImage, Required: true},
		},
		Options: []OptionSpec{
			{Name: "scale_factor", Type: OptionInt, Allowed: []string{"2", "4", "6", "8"}, Default: "2"},
		},
		Billing: Billing{ModelKey: "image_upscaler", Megapixels: true},
	})

	r.Register(&Descriptor{
		Kind:           models.KindFluxKontext,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "image", Field: "input_image", Media: models.MediaImage},
		},
		Options: []OptionSpec{
			{Name: "aspect_ratio", Type: OptionEnum, Allowed: append([]string{"match_input_image"}, aspectRatios...), Default: "match_input_image"},
			{Name: "prompt_upsampling", Type: OptionBool, Default: "false"},
			{Name: "safety_tolerance", Type: OptionInt, Min: 0, Max: 6, Default: "2"},
		},
		Billing: Billing{ModelKey: "flux_kontext_pro"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindKling,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "start", Field: "start_image", Media: models.MediaImage, Required: true},
			{Name: "end", Field: "end_image", Media: models.MediaImage},
		},
		Options: []OptionSpec{
			{Name: "mode", Type: OptionEnum, Allowed: []string{"standard", "pro"}, Default: "standard"},
			{Name: "duration", Type: OptionInt, Allowed: []string{"5", "10"}, Default: "5"},
			{Name: "negative_prompt", Type: OptionString},
		},
		Rules:   []Rule{endImageRequiresPro},
		Billing: Billing{ModelKey: "kling_ai_v2_1", UnitsOption: "duration", VariantOption: "mode"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindSeedream,
		RequiresPrompt: true,
		Slots: []Slot{
			{Name: "image", Field: "image_input", Media: models.MediaImage, List: true},
		},
		Options: []OptionSpec{
			{Name: "size", Type: OptionEnum, Allowed: []string{"1K", "2K", "4K"}, Default: "2K"},
			{Name: "aspect_ratio", Type: OptionEnum, Allowed: append([]string{"match_input_image"}, aspectRatios...), Default: "1:1"},
		},
		Billing: Billing{ModelKey: "seedream_4"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindGrok,
		RequiresPrompt: true,
		Billing:        Billing{ModelKey: "grok_2_image"},
	})

	r.Register(&Descriptor{
		Kind:           models.KindAlibabaWan,
		RequiresPrompt: true,
		Options: []OptionSpec{
			{Name: "duration", Type: OptionInt, Allowed: []string{"5", "10"}, Default: "5"},
			{Name: "size", Type: OptionEnum, Allowed: []string{"832*480", "480*832", "1280*720", "720*1280", "1920*1080", "1080*1920"}, Default: "1280*720"},
			{Name: "negative_prompt", Type: OptionString},
		},
		Billing: Billing{
			ModelKey:      "alibaba_wan_2_5",
			UnitsOption:   "duration",
			VariantOption: "size",
			Variants: map[string]string{
				"832*480": "480p", "480*832": "480p",
				"1280*720": "720p", "720*1280": "720p",
				"1920*1080": "1080p", "1080*1920": "1080p",
			},
		},
	})

	r.Register(&Descriptor{
		Kind: models.KindVideoUpscale,
		Slots: []Slot{
			{Name: "video", Field: "video_input", Media: models.MediaVideo, Required: true},
		},
		Options: []OptionSpec{
			{Name: "target_resolution", Type: OptionEnum, Allowed: []string{"720p", "1080p", "4k"}, Default: "1080p"},
			{Name: "target_fps", Type: OptionInt, Min: 15, Max: 60, Default: "30"},
		},
		Billing: Billing{ModelKey: "topaz_video_upscale"},
	})

	return r
}

func endImageRequiresPro(in *Input, opts map[string]any) error {
	if in.Media["end"] == nil {
		return nil
	}
	if opts["mode"] != "pro" {
		return models.NewValidationError(models.KindKling, "end_image", "an end image requires mode=pro")
	}
	return nil
}
