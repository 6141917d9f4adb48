package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCategory_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		want     bool
	}{
		{"image", CategoryImage, true},
		{"video", CategoryVideo, true},
		{"edit", CategoryEdit, true},
		{"assist", CategoryAssist, true},
		{"unknown", Category("audio"), false},
		{"empty", Category(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.category.IsValid(); got != tt.want {
				t.Errorf("Category.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	tools := c.List()
	if len(tools) != len(Kinds()) {
		t.Fatalf("DefaultCatalog() has %d tools, want %d", len(tools), len(Kinds()))
	}

	ids := make(map[int]bool)
	names := make(map[string]bool)
	for _, tool := range tools {
		if ids[tool.ID] {
			t.Errorf("duplicate tool id %d", tool.ID)
		}
		if names[tool.Name] {
			t.Errorf("duplicate tool name %q", tool.Name)
		}
		ids[tool.ID] = true
		names[tool.Name] = true

		if !tool.Kind.IsValid() {
			t.Errorf("tool %q has invalid kind %q", tool.Name, tool.Kind)
		}
		if !tool.Category.IsValid() {
			t.Errorf("tool %q has invalid category %q", tool.Name, tool.Category)
		}
		if tool.Slug != string(tool.Kind) {
			t.Errorf("tool %q slug = %q, want %q", tool.Name, tool.Slug, tool.Kind)
		}
	}
}

func TestCatalog_Find(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		ref    string
		wantID int
		wantOK bool
	}{
		{"5", 5, true},
		{"image-upscaler", 5, true},
		{"Image Upscaler", 5, true},
		{"KLING", 4, true},
		{"kling ai v2.1", 4, true},
		{"999", 0, false},
		{"photoshop", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			tool, ok := c.Find(tt.ref)
			if ok != tt.wantOK {
				t.Fatalf("Find(%q) ok = %v, want %v", tt.ref, ok, tt.wantOK)
			}
			if ok && tool.ID != tt.wantID {
				t.Errorf("Find(%q) id = %d, want %d", tt.ref, tool.ID, tt.wantID)
			}
		})
	}
}

func TestCatalog_RegisterReplaces(t *testing.T) {
	c := NewCatalog()
	c.Register(&Tool{ID: 1, Name: "A", Slug: "a"})
	c.Register(&Tool{ID: 2, Name: "B", Slug: "b"})
	c.Register(&Tool{ID: 1, Name: "A2", Slug: "a"})

	tools := c.List()
	if len(tools) != 2 {
		t.Fatalf("List() len = %d, want 2", len(tools))
	}
	if tools[0].Name != "A2" {
		t.Errorf("List()[0].Name = %q, want A2", tools[0].Name)
	}
}

func TestCatalog_ListByCategory(t *testing.T) {
	c := DefaultCatalog()
	for _, tool := range c.ListByCategory(CategoryVideo) {
		if tool.Category != CategoryVideo {
			t.Errorf("ListByCategory(video) returned %q (%s)", tool.Name, tool.Category)
		}
	}
	if len(c.ListByCategory(CategoryAssist)) != 3 {
		t.Errorf("ListByCategory(assist) len = %d, want 3", len(c.ListByCategory(CategoryAssist)))
	}
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	data := `{
		"id": "m1",
		"session_id": "s1",
		"role": "assistant",
		"content": "done",
		"image_urls": ["https://cdn.example.com/a.png"],
		"video_url": "https://cdn.example.com/v.mp4",
		"timestamp": "2025-10-07T12:34:56.123456"
	}`

	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", m.Role)
	}
	if !m.HasImages() || m.ImageURLs[0] != "https://cdn.example.com/a.png" {
		t.Errorf("ImageURLs = %v", m.ImageURLs)
	}
	if len(m.VideoURLs) != 1 || m.VideoURLs[0] != "https://cdn.example.com/v.mp4" {
		t.Errorf("VideoURLs = %v, want single video", m.VideoURLs)
	}
	if m.Timestamp.IsZero() || m.Timestamp.Year() != 2025 {
		t.Errorf("Timestamp = %v, want 2025 date", m.Timestamp)
	}
}

func TestParseDataURL(t *testing.T) {
	encoded := EncodeDataURL("image/png", []byte("png-bytes"))

	mime, data, err := ParseDataURL(encoded)
	if err != nil {
		t.Fatalf("ParseDataURL() error = %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
	if string(data) != "png-bytes" {
		t.Errorf("data = %q, want png-bytes", data)
	}

	for _, bad := range []string{"https://example.com/a.png", "data:image/png,raw", "data:image/png;base64", "data:image/png;base64,!!!"} {
		if _, _, err := ParseDataURL(bad); !errors.Is(err, ErrInvalidDataURL) {
			t.Errorf("ParseDataURL(%q) error = %v, want ErrInvalidDataURL", bad, err)
		}
	}
}

func TestUploadedMedia(t *testing.T) {
	m := NewUploadedMedia("clip.mp4", "video/mp4", []byte("1234"))
	if m.Type() != MediaVideo {
		t.Errorf("Type() = %q, want video", m.Type())
	}
	if m.Size != 4 {
		t.Errorf("Size = %d, want 4", m.Size)
	}
	data, err := m.Bytes()
	if err != nil || string(data) != "1234" {
		t.Errorf("Bytes() = %q, %v", data, err)
	}

	img := NewUploadedMedia("a.png", "image/png", []byte("x"))
	if img.Type() != MediaImage {
		t.Errorf("Type() = %q, want image", img.Type())
	}
}

func TestErrors(t *testing.T) {
	verr := NewValidationError(KindKling, "end_image", "requires pro mode")
	if !errors.Is(verr, ErrValidation) {
		t.Error("ValidationError should wrap ErrValidation")
	}
	if verr.Error() != "kling: end_image: requires pro mode" {
		t.Errorf("Error() = %q", verr.Error())
	}

	aerr := &AuthError{Status: 401, Message: "invalid token"}
	if !errors.Is(aerr, ErrAuth) {
		t.Error("AuthError should wrap ErrAuth")
	}
	var target *AuthError
	if !errors.As(error(aerr), &target) || target.Status != 401 {
		t.Errorf("errors.As() failed for AuthError")
	}
}

func TestAuthUser_IsPremium(t *testing.T) {
	tests := []struct {
		name string
		user *AuthUser
		want bool
	}{
		{"nil user", nil, false},
		{"free trial", &AuthUser{Plan: PlanFreeTrial}, false},
		{"premium plan", &AuthUser{Plan: PlanPremium}, true},
		{"premium flag", &AuthUser{Premium: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.IsPremium(); got != tt.want {
				t.Errorf("IsPremium() = %v, want %v", got, tt.want)
			}
		})
	}
}
