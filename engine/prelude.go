package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Params is the parameter bag exposed to instrumentation scripts as the
// ENV global.
type Params struct {
	BenchName        string `json:"bench_name"`
	LibraryPath      string `json:"library_path"`
	BenchPath        string `json:"bench_path"`
	MeasureWarm      bool   `json:"measure_warm"`
	WarmupIterations int    `json:"warmup_iterations"`
	TimedIterations  int    `json:"timed_iterations"`
}

// JavaScriptCore ships readFile natively.
const jscPrelude = `
function now() {
    return preciseTime() * 1000;
}
function globalEval(code) {
    (0, eval)(code);
}
function report(label, time) {
    print(label + '_' + {{json .Tag}}, time);
}

this.ENV = {{json .Params}};
{{.Body}}
`

// The function wrapper shadows the CommonJS "module" binding so UMD
// bundles attach themselves to the global object.
const nodePrelude = `
function now() {
    var hrTime = process.hrtime();
    return hrTime[0] * 1e3 + hrTime[1] * 1e-6;
}
function globalEval(code) {
    var vm = require('vm');
    vm.runInThisContext('(function(module){' + code + '\n})()');
}
function readFile(filename) {
    var fs = require('fs');
    return fs.readFileSync(filename);
}
function report(label, time) {
    console.log(label + '_' + {{json .Tag}}, time);
}

global.ENV = {{json .Params}};
{{.Body}}
`

var preludes = map[Kind]*template.Template{
	JSCJIT:   mustPrelude("jsc", jscPrelude),
	JSCNoJIT: mustPrelude("jsc", jscPrelude),
	Node:     mustPrelude("node", nodePrelude),
}

func mustPrelude(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(template.FuncMap{
		"json": toJSON,
	}).Parse(text))
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

type preludeData struct {
	Tag    string
	Params Params
	Body   string
}

// Render returns the complete script evaluated by a runtime of kind k:
// the kind's prelude followed by body.
func Render(k Kind, body string, params Params) (string, error) {
	tmpl, ok := preludes[k]
	if !ok {
		return "", fmt.Errorf("no prelude for engine %s", k)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, preludeData{
		Tag:    k.Tag(),
		Params: params,
		Body:   body,
	}); err != nil {
		return "", fmt.Errorf("render %s prelude: %w", k, err)
	}

	return sb.String(), nil
}
