package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseJSONFile parses a JSON job file.
func ParseJSONFile(path string) *ParseResult {
	return parseFile(path, FormatJSON, ParseJSONString)
}

// ParseYAMLFile parses a YAML job file.
func ParseYAMLFile(path string) *ParseResult {
	return parseFile(path, FormatYAML, ParseYAMLString)
}

func parseFile(path, format string, parse func(string) *ParseResult) *ParseResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return &ParseResult{
			FilePath: path,
			Format:   format,
			Errors: []ParseError{{
				Path:    path,
				Message: fmt.Sprintf("failed to read file: %v", err),
				Type:    ErrorTypeIO,
			}},
		}
	}

	result := parse(string(content))
	result.FilePath = path
	for i := range result.Errors {
		if result.Errors[i].Path == "" {
			result.Errors[i].Path = path
		}
	}
	return result
}

// ParseJSONString parses JSON content. The document must be an object.
func ParseJSONString(content string) *ParseResult {
	result := &ParseResult{Format: FormatJSON}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, ParseError{
			Message: "empty content: expected JSON object",
			Type:    ErrorTypeSyntax,
		})
		return result
	}

	var data interface{}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		result.Errors = append(result.Errors, parseJSONError(err, content))
		return result
	}
	return setDocument(result, data, "JSON object")
}

// ParseYAMLString parses YAML content. The document must be a mapping.
// Values are normalised to their JSON equivalents so YAML and JSON job files
// validate and convert identically.
func ParseYAMLString(content string) *ParseResult {
	result := &ParseResult{Format: FormatYAML}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, ParseError{
			Message: "empty content: expected YAML document",
			Type:    ErrorTypeSyntax,
		})
		return result
	}

	var data interface{}
	if err := yaml.Unmarshal([]byte(content), &data); err != nil {
		result.Errors = append(result.Errors, parseYAMLError(err))
		return result
	}
	if data == nil {
		// comments only
		return result
	}
	normalized, err := jsonCompatible(data)
	if err != nil {
		result.Errors = append(result.Errors, ParseError{
			Message: fmt.Sprintf("unsupported YAML value: %v", err),
			Type:    ErrorTypeFormat,
		})
		return result
	}
	return setDocument(result, normalized, "YAML mapping")
}

func setDocument(result *ParseResult, data interface{}, want string) *ParseResult {
	if data == nil {
		return result
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		result.Errors = append(result.Errors, ParseError{
			Message: fmt.Sprintf("invalid job file: expected %s, got %T", want, data),
			Type:    ErrorTypeFormat,
		})
		return result
	}
	result.Data = m
	return result
}

// jsonCompatible round-trips v through encoding/json.
func jsonCompatible(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseJSONError(err error, content string) ParseError {
	parseErr := ParseError{
		Message: err.Error(),
		Type:    ErrorTypeSyntax,
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		parseErr.Offset = syntaxErr.Offset
		parseErr.Line, parseErr.Column = offsetToLineColumn(content, syntaxErr.Offset)
		parseErr.Message = fmt.Sprintf("JSON syntax error at offset %d: %s", syntaxErr.Offset, syntaxErr.Error())
	}
	return parseErr
}

// offsetToLineColumn converts a byte offset to line and column numbers (1-based).
func offsetToLineColumn(content string, offset int64) (line, column int) {
	line, column = 1, 1
	for i := int64(0); i < offset && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

func parseYAMLError(err error) ParseError {
	parseErr := ParseError{
		Message: err.Error(),
		Type:    ErrorTypeSyntax,
	}

	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		parseErr.Message = fmt.Sprintf("YAML type error: %s", strings.Join(typeErr.Errors, "; "))
	}

	// yaml.v3 reports positions as "yaml: line X: ..."
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		parseErr.Line = line
	}
	return parseErr
}

// ParseConfig parses and validates a job file. The format comes from the
// file extension, or from the content when the extension is unknown.
func ParseConfig(path string) *Result {
	result := &Result{FilePath: path}

	var parsed *ParseResult
	switch DetectFormat(path) {
	case FormatJSON:
		parsed = ParseJSONFile(path)
	case FormatYAML:
		parsed = ParseYAMLFile(path)
	default:
		content, err := os.ReadFile(path)
		if err != nil {
			result.ParseErrors = append(result.ParseErrors, ParseError{
				Path:    path,
				Message: fmt.Sprintf("failed to read file: %v", err),
				Type:    ErrorTypeIO,
			})
			return result
		}
		format := detectContentFormat(string(content))
		if format == "" {
			result.ParseErrors = append(result.ParseErrors, ParseError{
				Path:    path,
				Message: "unable to detect job file format: not valid JSON or YAML",
				Type:    ErrorTypeFormat,
			})
			return result
		}
		parsed = parseContent(string(content), format)
		parsed.FilePath = path
	}

	return finishResult(result, parsed)
}

// ParseConfigString parses and validates job content. An empty format is
// detected from the content.
func ParseConfigString(content, format string) *Result {
	result := &Result{Format: format}
	if format == "" {
		format = detectContentFormat(content)
		if format == "" {
			result.ParseErrors = append(result.ParseErrors, ParseError{
				Message: "unable to detect job file format: not valid JSON or YAML",
				Type:    ErrorTypeFormat,
			})
			return result
		}
	}
	if format != FormatJSON && format != FormatYAML {
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Message: fmt.Sprintf("unsupported format: %s", format),
			Type:    ErrorTypeFormat,
		})
		return result
	}
	return finishResult(result, parseContent(content, format))
}

func parseContent(content, format string) *ParseResult {
	if format == FormatJSON {
		return ParseJSONString(content)
	}
	return ParseYAMLString(content)
}

// finishResult copies the parse outcome into result and validates it.
func finishResult(result *Result, parsed *ParseResult) *Result {
	result.Data = parsed.Data
	result.ParseErrors = parsed.Errors
	result.Format = parsed.Format
	if !parsed.IsValid() {
		return result
	}
	result.ValidationErrors = ValidateConfig(parsed.Data).Errors
	return result
}

func detectContentFormat(content string) string {
	switch {
	case IsJSON(content):
		return FormatJSON
	case IsYAML(content):
		return FormatYAML
	default:
		return ""
	}
}

// DetectFormat detects the job file format from its extension.
// Returns "json", "yaml", or empty string if the extension is unknown.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// IsJSON checks if the content appears to be JSON.
func IsJSON(content string) bool {
	content = strings.TrimSpace(content)
	return strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[")
}

// IsYAML checks if the content parses as a non-empty YAML document.
// JSON is also valid YAML, so this may return true for JSON content.
func IsYAML(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	var data interface{}
	err := yaml.Unmarshal([]byte(content), &data)
	return err == nil && data != nil
}
