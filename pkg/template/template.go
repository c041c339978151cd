// Package template renders task configuration values against the run
// context, so later tasks can reference trigger input and earlier outputs.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
)

// singleRefPattern matches expressions that are exactly one field reference,
// like {{.outputs.fetch.rows}}. Those resolve to the raw value so lists and
// objects survive without a text round trip.
var singleRefPattern = regexp.MustCompile(`^\{\{\s*\.([\w.]+)\s*\}\}$`)

// RenderWithContext renders a template string against the run context
// snapshot: {{.input.*}}, {{.outputs.<task>.*}} and {{.run.*}} are available.
func RenderWithContext(input string, runCtx *models.RunContext) (any, error) {
	return Render(input, runCtx.Snapshot())
}

// Render executes a template string over arbitrary data. The rendered text
// is coerced back into JSON, number or boolean when it looks like one, so
// expressions can produce structured values and not only strings.
func Render(templateStr string, data any) (any, error) {
	if match := singleRefPattern.FindStringSubmatch(strings.TrimSpace(templateStr)); match != nil {
		if value, ok := resolvePath(data, strings.Split(match[1], ".")); ok {
			return value, nil
		}

		return nil, fmt.Errorf("template %q references an unknown field", templateStr)
	}

	tmpl, err := template.
		New("task").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"lower": strings.ToLower,
			"upper": strings.ToUpper,
			"toJson": func(v any) (string, error) {
				encoded, err := json.Marshal(v)

				return string(encoded), err
			},
		}).
		Option("missingkey=error").
		Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", templateStr, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %q: %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any
		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func resolvePath(data any, path []string) (any, bool) {
	current := data

	for _, segment := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// RenderBool renders a boolean expression, treating the empty expression as
// true. Non-boolean render results are coerced the obvious way: non-zero
// numbers and non-empty strings other than "false" are true.
func RenderBool(expression string, runCtx *models.RunContext) (bool, error) {
	if expression == "" {
		return true, nil
	}

	value, err := RenderWithContext(expression, runCtx)
	if err != nil {
		return false, err
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		if v == "" {
			return false, nil
		}

		parsed, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			return false, fmt.Errorf("cannot convert %q to boolean: %w", v, parseErr)
		}

		return parsed, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
