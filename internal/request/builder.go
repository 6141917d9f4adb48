package request

import (
	"fmt"
	"sort"
	"strings"

	"github.com/manash/splendid/pkg/models"
)

// Input is the studio state a request is built from.
type Input struct {
	SessionID string
	Prompt    string
	Options   map[string]string
	Media     map[string]*models.UploadedMedia
}

// Request is a fully validated generation call.
type Request struct {
	Tool     models.ToolKind
	Endpoint string
	Body     map[string]any
}

// Validate checks the input against the tool descriptor without touching the
// network and returns the coerced option values, defaults included.
func (r *Registry) Validate(tool *models.Tool, in *Input) (map[string]any, error) {
	d, ok := r.Get(tool.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTool, tool.Kind)
	}
	norm, err := d.normalize(in)
	if err != nil {
		return nil, err
	}
	return d.validate(norm)
}

// Build validates the input and assembles the endpoint and JSON body. The
// body starts from the common {session_id, prompt} pair and tool fields are
// merged on top.
func (r *Registry) Build(tool *models.Tool, in *Input) (*Request, error) {
	d, ok := r.Get(tool.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTool, tool.Kind)
	}
	norm, err := d.normalize(in)
	if err != nil {
		return nil, err
	}
	opts, err := d.validate(norm)
	if err != nil {
		return nil, err
	}
	if norm.SessionID == "" {
		return nil, models.NewValidationError(d.Kind, "session_id", "no active session")
	}

	body := map[string]any{
		"session_id": norm.SessionID,
		"prompt":     strings.TrimSpace(norm.Prompt),
	}
	for name, v := range opts {
		body[name] = v
	}
	for _, slot := range d.Slots {
		m := norm.Media[slot.Name]
		if m == nil {
			continue
		}
		if slot.List {
			body[slot.Field] = []string{m.DataURL}
		} else {
			body[slot.Field] = m.DataURL
		}
		if slot.NameField != "" && m.Name != "" {
			body[slot.NameField] = m.Name
		}
	}

	return &Request{
		Tool:     d.Kind,
		Endpoint: GeneratePath(tool.Slug),
		Body:     body,
	}, nil
}

// normalize keys media by slot name, accepting field names as aliases.
func (d *Descriptor) normalize(in *Input) (*Input, error) {
	out := &Input{
		SessionID: in.SessionID,
		Prompt:    in.Prompt,
		Options:   in.Options,
		Media:     make(map[string]*models.UploadedMedia, len(in.Media)),
	}
	for key, m := range in.Media {
		if m == nil {
			continue
		}
		slot, ok := d.Slot(key)
		if !ok {
			return nil, models.NewValidationError(d.Kind, key, "tool does not accept this attachment")
		}
		out.Media[slot.Name] = m
	}
	return out, nil
}

func (d *Descriptor) validate(in *Input) (map[string]any, error) {
	if d.RequiresPrompt && strings.TrimSpace(in.Prompt) == "" {
		return nil, models.NewValidationError(d.Kind, "prompt", "a prompt is required")
	}

	for _, slot := range d.Slots {
		m := in.Media[slot.Name]
		if m == nil {
			if slot.Required {
				return nil, models.NewValidationError(d.Kind, slot.Field, fmt.Sprintf("exactly one %s is required", slot.Media))
			}
			continue
		}
		if m.Type() != slot.Media {
			return nil, models.NewValidationError(d.Kind, slot.Field, fmt.Sprintf("expected %s, got %s", slot.Media, m.MIME))
		}
	}

	names := make([]string, 0, len(in.Options))
	for name := range in.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := d.Option(name); !ok {
			return nil, models.NewValidationError(d.Kind, name, "unknown option")
		}
	}

	opts := make(map[string]any, len(d.Options))
	for i := range d.Options {
		spec := &d.Options[i]
		raw, set := in.Options[spec.Name]
		if !set || strings.TrimSpace(raw) == "" {
			raw = spec.Default
		}
		if raw == "" {
			continue
		}
		v, err := spec.Coerce(raw)
		if err != nil {
			return nil, models.NewValidationError(d.Kind, spec.Name, err.Error())
		}
		opts[spec.Name] = v
	}

	for _, rule := range d.Rules {
		if err := rule(in, opts); err != nil {
			return nil, err
		}
	}
	return opts, nil
}
