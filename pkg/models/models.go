package models

import (
	"slices"
	"strconv"
	"strings"
)

type Category string

const (
	CategoryImage  Category = "image"
	CategoryVideo  Category = "video"
	CategoryEdit   Category = "edit"
	CategoryAssist Category = "assist"
)

func ValidCategories() []Category {
	return []Category{CategoryImage, CategoryVideo, CategoryEdit, CategoryAssist}
}

func (c Category) IsValid() bool {
	return slices.Contains(ValidCategories(), c)
}

func (c Category) String() string {
	return string(c)
}

// ToolKind selects the request shape and endpoint namespace of a tool.
type ToolKind string

const (
	KindNanoBanana    ToolKind = "nanobanana"
	KindNanoBananaPro ToolKind = "nanobanana-pro"
	KindChatGPT5      ToolKind = "chatgpt5"
	KindChatGPT51     ToolKind = "chatgpt51"
	KindGemini3Pro    ToolKind = "gemini3-pro"
	KindGoogleVeo     ToolKind = "google-veo"
	KindSora2         ToolKind = "sora2"
	KindImageUpscaler ToolKind = "image-upscaler"
	KindFluxKontext   ToolKind = "flux-kontext"
	KindKling         ToolKind = "kling"
	KindSeedream      ToolKind = "seedream"
	KindGrok          ToolKind = "grok"
	KindAlibabaWan    ToolKind = "alibaba-wan"
	KindVideoUpscale  ToolKind = "video-upscale"
)

func Kinds() []ToolKind {
	return []ToolKind{
		KindNanoBanana, KindNanoBananaPro, KindChatGPT5, KindChatGPT51,
		KindGemini3Pro, KindGoogleVeo, KindSora2, KindImageUpscaler,
		KindFluxKontext, KindKling, KindSeedream, KindGrok,
		KindAlibabaWan, KindVideoUpscale,
	}
}

func (k ToolKind) IsValid() bool {
	return slices.Contains(Kinds(), k)
}

func (k ToolKind) String() string {
	return string(k)
}

type Tool struct {
	ID          int
	Name        string
	Slug        string
	Kind        ToolKind
	Category    Category
	Description string
	Image       string
	IsNew       bool
	IsTop       bool
}

// IsChat reports whether the tool answers with text rather than media.
func (t *Tool) IsChat() bool {
	return t.Category == CategoryAssist
}

type Catalog struct {
	tools []*Tool
	byID  map[int]*Tool
}

func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[int]*Tool)}
}

// Register adds a tool, replacing any earlier tool with the same id.
func (c *Catalog) Register(tool *Tool) {
	if old, ok := c.byID[tool.ID]; ok {
		i := slices.Index(c.tools, old)
		c.tools[i] = tool
	} else {
		c.tools = append(c.tools, tool)
	}
	c.byID[tool.ID] = tool
}

func (c *Catalog) Get(id int) (*Tool, bool) {
	tool, ok := c.byID[id]
	return tool, ok
}

func (c *Catalog) BySlug(slug string) (*Tool, bool) {
	for _, t := range c.tools {
		if t.Slug == slug {
			return t, true
		}
	}
	return nil, false
}

func (c *Catalog) ByName(name string) (*Tool, bool) {
	for _, t := range c.tools {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// Find resolves a tool by numeric id, slug or display name.
func (c *Catalog) Find(ref string) (*Tool, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		return c.Get(id)
	}
	if t, ok := c.BySlug(strings.ToLower(ref)); ok {
		return t, true
	}
	return c.ByName(ref)
}

func (c *Catalog) List() []*Tool {
	return slices.Clone(c.tools)
}

func (c *Catalog) ListByCategory(cat Category) []*Tool {
	var out []*Tool
	for _, t := range c.tools {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	return out
}

func (c *Catalog) Slugs() []string {
	slugs := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		slugs = append(slugs, t.Slug)
	}
	return slugs
}

func DefaultCatalog() *Catalog {
	c := NewCatalog()

	c.Register(&Tool{
		ID: 1, Name: "Google Veo 3.1", Slug: "google-veo", Kind: KindGoogleVeo, Category: CategoryVideo,
		Description: "High definition video generation with Google's latest model.",
		IsNew:       true, IsTop: true,
	})
	c.Register(&Tool{
		ID: 5, Name: "Image Upscaler", Slug: "image-upscaler", Kind: KindImageUpscaler, Category: CategoryImage,
		Description: "Upscale and enhance images up to 8x.",
		IsTop:       true,
	})
	c.Register(&Tool{
		ID: 12, Name: "Nano Banana Pro", Slug: "nanobanana-pro", Kind: KindNanoBananaPro, Category: CategoryImage,
		Description: "Advanced image generation with Gemini 3 Pro: precise text and creative controls.",
		IsNew:       true,
	})
	c.Register(&Tool{
		ID: 13, Name: "Gemini 3 Pro", Slug: "gemini3-pro", Kind: KindGemini3Pro, Category: CategoryAssist,
		Description: "Google's multimodal reasoning model.",
		IsNew:       true,
	})
	c.Register(&Tool{
		ID: 14, Name: "ChatGPT 5.1", Slug: "chatgpt51", Kind: KindChatGPT51, Category: CategoryAssist,
		Description: "OpenAI's model for coding and agentic tasks with configurable reasoning.",
		IsNew:       true,
	})
	c.Register(&Tool{
		ID: 4, Name: "Kling AI v2.1", Slug: "kling", Kind: KindKling, Category: CategoryVideo,
		Description: "Image-to-video generation with smooth transitions.",
	})
	c.Register(&Tool{
		ID: 2, Name: "NanoBanana", Slug: "nanobanana", Kind: KindNanoBanana, Category: CategoryImage,
		Description: "Image generation and editing powered by Google Gemini.",
		IsTop:       true,
	})
	c.Register(&Tool{
		ID: 3, Name: "SORA 2", Slug: "sora2", Kind: KindSora2, Category: CategoryVideo,
		Description: "OpenAI's cinematic video generation model.",
	})
	c.Register(&Tool{
		ID: 6, Name: "Seedream 4", Slug: "seedream", Kind: KindSeedream, Category: CategoryImage,
		Description: "High resolution image generation up to 4K.",
	})
	c.Register(&Tool{
		ID: 7, Name: "Grok", Slug: "grok", Kind: KindGrok, Category: CategoryImage,
		Description: "Image generation by xAI.",
	})
	c.Register(&Tool{
		ID: 8, Name: "Alibaba Wan 2.5", Slug: "alibaba-wan", Kind: KindAlibabaWan, Category: CategoryVideo,
		Description: "Alibaba's text-to-video model.",
	})
	c.Register(&Tool{
		ID: 9, Name: "Flux Kontext Pro", Slug: "flux-kontext", Kind: KindFluxKontext, Category: CategoryEdit,
		Description: "Prompt driven image editing and artistic generation.",
	})
	c.Register(&Tool{
		ID: 10, Name: "Video Upscale AI", Slug: "video-upscale", Kind: KindVideoUpscale, Category: CategoryVideo,
		Description: "Upscale videos up to 4K.",
	})
	c.Register(&Tool{
		ID: 11, Name: "ChatGPT-5", Slug: "chatgpt5", Kind: KindChatGPT5, Category: CategoryAssist,
		Description: "Conversational assistant powered by OpenAI.",
	})

	return c
}
