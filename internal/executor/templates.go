// Package executor launches agent subprocesses from named templates
// (§4.6): claude, shell, matrix, and email, each expanding {{task_id}},
// {{prompt}}, and {{model}} placeholders into an argv, grounded on the
// teacher's devops/process subprocess-launch conventions.
package executor

import "strings"

// Template is a named subprocess launch recipe.
type Template struct {
	Name    string
	Command string
	Args    []string
}

var builtinTemplates = map[string]Template{
	"claude": {
		Name:    "claude",
		Command: "claude",
		Args:    []string{"-p", "{{prompt}}", "--model", "{{model}}"},
	},
	"shell": {
		Name:    "shell",
		Command: "/bin/sh",
		Args:    []string{"-c", "{{prompt}}"},
	},
	"matrix": {
		Name:    "matrix",
		Command: "wg-matrix-agent",
		Args:    []string{"--task", "{{task_id}}", "--prompt", "{{prompt}}"},
	},
	"email": {
		Name:    "email",
		Command: "wg-email-agent",
		Args:    []string{"--task", "{{task_id}}", "--body", "{{prompt}}"},
	},
}

// Lookup returns the named template, or false if it is not registered.
func Lookup(name string) (Template, bool) {
	t, ok := builtinTemplates[name]
	return t, ok
}

// Expand substitutes placeholders in the template's argv with the given
// values, leaving model empty if unset.
func (t Template) Expand(taskID, prompt, model string) (string, []string) {
	replacer := strings.NewReplacer(
		"{{task_id}}", taskID,
		"{{prompt}}", prompt,
		"{{model}}", model,
	)
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = replacer.Replace(a)
	}
	return t.Command, args
}
