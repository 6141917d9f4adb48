package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Item is one queued generation. Tool may be empty in which case the
// run's default tool is used.
type Item struct {
	Index   int
	Tool    string
	Prompt  string
	Options map[string]string
	Media   map[string]string
}

type jsonItem struct {
	Tool    string            `json:"tool,omitempty"`
	Prompt  string            `json:"prompt"`
	Options map[string]any    `json:"options,omitempty"`
	Media   map[string]string `json:"media,omitempty"`
}

func ParseFile(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		items, err := ParseJSON(file)
		if err != nil {
			return nil, err
		}
		resolveMedia(items, filepath.Dir(path))
		return items, nil
	case ".txt", "":
		return ParseText(file)
	default:
		return nil, fmt.Errorf("unsupported file format %q: use .txt or .json", ext)
	}
}

// ParseText reads one prompt per line. A line may start with "@tool " to
// route it to a specific tool.
func ParseText(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	index := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		index++
		item := Item{Index: index, Prompt: line}
		if strings.HasPrefix(line, "@") {
			tool, prompt, _ := strings.Cut(line[1:], " ")
			item.Tool = tool
			item.Prompt = strings.TrimSpace(prompt)
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no prompts found in file")
	}

	return items, nil
}

// ParseJSON reads an array of items. Option values may be strings, numbers
// or booleans; they are kept in their textual form and validated later
// against the tool.
func ParseJSON(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var jsonItems []jsonItem
	if err := json.Unmarshal(data, &jsonItems); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if len(jsonItems) == 0 {
		return nil, fmt.Errorf("no prompts found in file")
	}

	items := make([]Item, len(jsonItems))
	for i, ji := range jsonItems {
		if strings.TrimSpace(ji.Prompt) == "" && len(ji.Media) == 0 {
			return nil, fmt.Errorf("item %d has neither prompt nor media", i+1)
		}
		items[i] = Item{
			Index:  i + 1,
			Tool:   ji.Tool,
			Prompt: ji.Prompt,
			Media:  ji.Media,
		}
		if len(ji.Options) > 0 {
			items[i].Options = make(map[string]string, len(ji.Options))
			for k, v := range ji.Options {
				items[i].Options[k] = fmt.Sprint(v)
			}
		}
	}

	return items, nil
}

// resolveMedia makes relative media paths relative to the batch file.
func resolveMedia(items []Item, dir string) {
	for i := range items {
		for slot, p := range items[i].Media {
			if p != "" && !filepath.IsAbs(p) {
				items[i].Media[slot] = filepath.Join(dir, p)
			}
		}
	}
}
