package flow

import (
	"fmt"
	"regexp"
)

// Vars is the template context a flow builds up from tagged answers.
// Values are strings (TagAs) or booleans (StoreAs).
type Vars map[string]any

// clone returns a shallow copy; nil stays an empty, writable map.
func (v Vars) clone() Vars {
	out := make(Vars, len(v)+2)
	for k, val := range v {
		out[k] = val
	}
	return out
}

// placeholder matches "{{key}}" where key is any run of non-brace characters.
var placeholder = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// ResolveTemplate replaces every "{{key}}" whose key is bound in vars with the
// value's string form. Unbound tokens are left verbatim. The scan is a single
// pass: text coming from vars is never itself scanned for tokens.
func ResolveTemplate(tmpl string, vars Vars) string {
	if len(vars) == 0 {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := token[2 : len(token)-2]
		val, ok := vars[key]
		if !ok {
			return token
		}
		return stringify(val)
	})
}

// ResolveStepText renders a step's prompt against vars.
func ResolveStepText(step Step, vars Vars) string {
	return ResolveTemplate(step.Prompt, vars)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Rendered is a step ready to show: the prompt and option labels resolved.
type Rendered struct {
	Index   int      `json:"index"`
	StepID  string   `json:"step_id"`
	Text    string   `json:"text"`
	Options []Option `json:"options,omitempty"`
}

// Render resolves the prompt and every option label of the step at index.
func (f *Flow) Render(index int, vars Vars) Rendered {
	step := f.Steps[index]
	r := Rendered{
		Index:  index,
		StepID: step.ID,
		Text:   ResolveStepText(step, vars),
	}
	if step.IsChoice() {
		r.Options = make([]Option, len(step.Options))
		for i, o := range step.Options {
			r.Options[i] = Option{Label: ResolveTemplate(o.Label, vars), Value: o.Value}
		}
	}
	return r
}
