package input

import (
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/pathutil"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// JSONLoader reads a top-level array of objects.
// The header is the union of object keys in first-seen order.
type JSONLoader struct {
	path string
}

// NewJSONLoader creates a JSON array loader for the resolved path.
func NewJSONLoader(path string, _ sift.SourceConfig) (*JSONLoader, error) {
	if err := pathutil.ValidateFilePath(path); err != nil {
		return nil, errhandling.NewSourceUnreadable(path, "invalid source path", err)
	}
	return &JSONLoader{path: path}, nil
}

// Load reads the file and decodes it in document order.
func (l *JSONLoader) Load(ctx context.Context) (*record.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errhandling.NewSourceUnreadable(l.path, "cannot open source", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, errhandling.NewSourceUnreadable(l.path, "malformed JSON", nil)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, errhandling.NewSourceUnreadable(l.path, "expected a top-level array of objects", nil)
	}
	items := doc.Array()

	keys, err := l.collectKeys(items)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		empty, _ := record.NewHeader(nil)
		t := &record.Table{Header: empty, Source: l.path}
		return t, errhandling.NewEmptySheet(l.path, "")
	}

	b, err := newTableBuilder(l.path, "", keys)
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(keys))
	for i, k := range keys {
		pos[k] = i
	}
	for n, item := range items {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		values := make([]record.Value, len(keys))
		item.ForEach(func(k, v gjson.Result) bool {
			values[pos[k.String()]] = jsonValue(v)
			return true
		})
		b.add(values)
	}
	return b.finish()
}

func (l *JSONLoader) collectKeys(items []gjson.Result) ([]string, error) {
	var keys []string
	seen := make(map[string]bool)
	for i, item := range items {
		if !item.IsObject() {
			return nil, errhandling.NewSourceUnreadable(l.path, fmt.Sprintf("element %d is not an object", i), nil)
		}
		item.ForEach(func(k, _ gjson.Result) bool {
			name := k.String()
			if !seen[name] {
				seen[name] = true
				keys = append(keys, name)
			}
			return true
		})
	}
	return keys, nil
}

func jsonValue(v gjson.Result) record.Value {
	switch v.Type {
	case gjson.String:
		return record.Text(v.Str)
	case gjson.Number:
		return record.Number(v.Num)
	case gjson.True, gjson.False:
		return record.Text(v.String())
	case gjson.JSON:
		return record.Text(v.Raw)
	default:
		return record.Empty()
	}
}

// Close is a no-op: Load closes the file before returning.
func (l *JSONLoader) Close() error {
	return nil
}

var _ Module = (*JSONLoader)(nil)
