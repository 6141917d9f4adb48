package credits

// Credit price table. One credit is worth EuroPerCredit euros; every user
// starts with InitialCredits.

const (
	EuroPerCredit  = 0.026
	RoundingStep   = 0.5
	InitialCredits = 500
	InitialValue   = 13.0
)

type Unit string

const (
	UnitMessage Unit = "message"
	UnitImage   Unit = "image"
	UnitSecond  Unit = "second"
	UnitJob     Unit = "job"
)

type Variant struct {
	Name           string
	CreditsPerUnit float64
}

type Tier struct {
	MaxMegapixels  float64
	CreditsPerUnit float64
	OrAbove        bool
}

type ModelPrice struct {
	Key            string
	DisplayName    string
	Unit           Unit
	CreditsPerUnit float64
	Unmetered      bool
	Variants       []Variant
	Tiers          []Tier
}

var modelPrices = []ModelPrice{
	{Key: "chatgpt", DisplayName: "ChatGPT", Unit: UnitMessage, Unmetered: true},
	{Key: "topaz_video_upscale", DisplayName: "Video Upscale AI", Unit: UnitJob, CreditsPerUnit: 1.92},
	{Key: "flux_kontext_pro", DisplayName: "Flux Kontext Pro", Unit: UnitImage, CreditsPerUnit: 1.54},
	{Key: "alibaba_wan_2_5", DisplayName: "Alibaba WAN 2.5", Unit: UnitSecond, Variants: []Variant{
		{"480p", 1.92}, {"720p", 3.85}, {"1080p", 5.77},
	}},
	{Key: "grok_2_image", DisplayName: "Grok 2 Image", Unit: UnitImage, CreditsPerUnit: 2.69},
	{Key: "seedream_4", DisplayName: "Seedream 4", Unit: UnitImage, CreditsPerUnit: 1.15},
	{Key: "image_upscaler", DisplayName: "Image Upscaler", Unit: UnitImage, Tiers: []Tier{
		{MaxMegapixels: 4, CreditsPerUnit: 1.92},
		{MaxMegapixels: 8, CreditsPerUnit: 3.85},
		{MaxMegapixels: 16, CreditsPerUnit: 7.69},
		{MaxMegapixels: 25, CreditsPerUnit: 15.38, OrAbove: true},
	}},
	{Key: "kling_ai_v2_1", DisplayName: "Kling AI v2.1", Unit: UnitSecond, Variants: []Variant{
		{"standard", 1.92}, {"pro", 3.46},
	}},
	{Key: "sora_2", DisplayName: "SORA 2", Unit: UnitSecond, CreditsPerUnit: 3.85},
	{Key: "nano_banana", DisplayName: "NanoBanana", Unit: UnitImage, CreditsPerUnit: 1.5},
	{Key: "google_veo_3_1", DisplayName: "Google VEO 3.1", Unit: UnitSecond, Variants: []Variant{
		{"without_audio", 7.69}, {"with_audio", 15.38},
	}},
	{Key: "nano_banana_pro", DisplayName: "Nano Banana Pro", Unit: UnitImage, Variants: []Variant{
		{"1K", 5.12}, {"2K", 5.12}, {"4K", 8.77},
	}},
	{Key: "gemini3_pro", DisplayName: "Gemini 3 Pro", Unit: UnitMessage, Variants: []Variant{
		{"low", 2.31}, {"high", 4.62},
	}},
	{Key: "chatgpt51", DisplayName: "ChatGPT 5.1", Unit: UnitMessage, Variants: []Variant{
		{"none", 1.92}, {"low", 3.85}, {"medium", 7.69}, {"high", 15.38},
	}},
}

func Models() []ModelPrice {
	out := make([]ModelPrice, len(modelPrices))
	copy(out, modelPrices)
	return out
}

func Lookup(key string) (ModelPrice, bool) {
	for _, m := range modelPrices {
		if m.Key == key {
			return m, true
		}
	}
	return ModelPrice{}, false
}
