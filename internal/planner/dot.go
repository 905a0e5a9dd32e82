package planner

import (
	"bytes"
	"os"
	"text/template"
)

const defaultDOTTemplate = `digraph {{printf "%q" .ID}} {
  rankdir=LR;
  node [shape=box, style=rounded];
{{- range .Waves}}

  subgraph cluster_wave_{{.Index}} {
    label={{printf "wave %d (day %.1f)" .Index .Start | printf "%q"}};
{{- range .Tasks}}
    {{printf "%q" .TaskID}} [label={{printf "%s\n%.1fd" .TaskID .Duration | printf "%q"}}{{if .IsCritical}}, color=red, penwidth=2{{end}}];
{{- end}}
  }
{{- end}}
{{range $id, $succs := .Deps.Successors}}{{range $succs}}
  {{printf "%q" $id}} -> {{printf "%q" .}};
{{- end}}{{end}}
}
`

// RenderDOT renders plan as a Graphviz digraph using either a custom template
// file or the default. Waves become clusters and critical tasks are drawn red.
func RenderDOT(plan *BaselinePlan, templatePath string) (string, error) {
	tmplStr := defaultDOTTemplate
	if templatePath != "" {
		content, err := os.ReadFile(templatePath)
		if err != nil {
			return "", err
		}
		tmplStr = string(content)
	}

	tmpl, err := template.New("dot").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, plan); err != nil {
		return "", err
	}
	return buf.String(), nil
}
