package domain

import (
	"encoding/json"
	"strconv"
)

// Attachment is a file published alongside a content item. Order is preserved.
type Attachment struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
}

// ContentItem is one unit to publish. Numbers in Extras are held as
// json.Number once the item is cloned, so they survive a JSON round trip
// without changing type or precision.
type ContentItem struct {
	ID          string                 `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string                 `json:"title" yaml:"title"`
	Body        string                 `json:"body" yaml:"body"`
	Tags        []string               `json:"tags,omitempty" yaml:"tags,omitempty"`
	Attachments []Attachment           `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	SourceRef   string                 `json:"source_ref,omitempty" yaml:"source_ref,omitempty"`
	Extras      map[string]interface{} `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Clone returns a deep copy of the item so callers cannot mutate a running job.
func (c ContentItem) Clone() ContentItem {
	// empty collections become nil, as they read back from JSON
	out := c
	out.Tags = nil
	out.Attachments = nil
	out.Extras = nil
	if len(c.Tags) > 0 {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if len(c.Attachments) > 0 {
		out.Attachments = append([]Attachment(nil), c.Attachments...)
	}
	if len(c.Extras) > 0 {
		out.Extras = cloneMap(c.Extras)
	}
	return out
}

// CloneItems deep-copies a slice of items
func CloneItems(items []ContentItem) []ContentItem {
	if items == nil {
		return nil
	}
	out := make([]ContentItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return normalizeNumber(v)
	}
}

func normalizeNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int8:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int16:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int64:
		return json.Number(strconv.FormatInt(n, 10))
	case uint:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint8:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint16:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint32:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint64:
		return json.Number(strconv.FormatUint(n, 10))
	case float32, float64:
		// same text encoding/json writes; NaN and Inf stay as they are
		b, err := json.Marshal(n)
		if err != nil {
			return v
		}
		return json.Number(b)
	default:
		return v
	}
}
