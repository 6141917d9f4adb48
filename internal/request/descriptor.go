package request

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/manash/splendid/pkg/models"
)

type OptionType string

const (
	OptionEnum   OptionType = "enum"
	OptionInt    OptionType = "int"
	OptionBool   OptionType = "bool"
	OptionString OptionType = "string"
)

// OptionSpec describes one tool option and the body field it is sent as.
type OptionSpec struct {
	Name        string
	Type        OptionType
	Allowed     []string
	Default     string
	Min         int
	Max         int
	Description string
}

// Coerce converts a raw option value to the JSON value sent to the backend.
func (o *OptionSpec) Coerce(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch o.Type {
	case OptionEnum:
		if !slices.Contains(o.Allowed, raw) {
			return nil, fmt.Errorf("%q not in %v", raw, o.Allowed)
		}
		return raw, nil
	case OptionInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		if len(o.Allowed) > 0 && !slices.Contains(o.Allowed, strconv.Itoa(n)) {
			return nil, fmt.Errorf("%d not in %v", n, o.Allowed)
		}
		if o.Min != 0 || o.Max != 0 {
			if n < o.Min || n > o.Max {
				return nil, fmt.Errorf("%d outside %d..%d", n, o.Min, o.Max)
			}
		}
		return n, nil
	case OptionBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// Choices renders the accepted values for help output.
func (o *OptionSpec) Choices() string {
	switch {
	case len(o.Allowed) > 0:
		return strings.Join(o.Allowed, "|")
	case o.Type == OptionInt && (o.Min != 0 || o.Max != 0):
		return fmt.Sprintf("%d..%d", o.Min, o.Max)
	case o.Type == OptionBool:
		return "true|false"
	default:
		return "text"
	}
}

// Slot is an upload position accepting one pending attachment.
type Slot struct {
	Name      string
	Field     string
	NameField string
	Media     models.MediaType
	Required  bool
	List      bool
}

// Rule is a cross-field check run after per-field validation.
type Rule func(in *Input, opts map[string]any) error

// Billing tells the credits estimator how a request is priced.
type Billing struct {
	ModelKey      string
	UnitsOption   string
	VariantOption string
	Variants      map[string]string
	Megapixels    bool
}

type Descriptor struct {
	Kind           models.ToolKind
	RequiresPrompt bool
	Slots          []Slot
	Options        []OptionSpec
	Rules          []Rule
	Billing        Billing
}

func (d *Descriptor) Slot(name string) (*Slot, bool) {
	for i := range d.Slots {
		if d.Slots[i].Name == name || d.Slots[i].Field == name {
			return &d.Slots[i], true
		}
	}
	return nil, false
}

// DefaultSlot is the slot used when an attachment names none.
func (d *Descriptor) DefaultSlot() (*Slot, bool) {
	if len(d.Slots) == 0 {
		return nil, false
	}
	return &d.Slots[0], true
}

func (d *Descriptor) Option(name string) (*OptionSpec, bool) {
	for i := range d.Options {
		if d.Options[i].Name == name {
			return &d.Options[i], true
		}
	}
	return nil, false
}

// AcceptsMedia reports whether the tool takes any attachment at all.
func (d *Descriptor) AcceptsMedia() bool {
	return len(d.Slots) > 0
}

func SessionPath(slug string) string {
	return "/api/" + slug + "/session"
}

func HistoryPath(slug, sessionID string) string {
	return "/api/" + slug + "/session/" + sessionID
}

func GeneratePath(slug string) string {
	return "/api/" + slug + "/generate"
}
