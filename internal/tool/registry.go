package tool

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ymhiroki/qchat/internal/message"
)

//go:embed tool_index.json
var toolIndexJSON []byte

var (
	loadOnce sync.Once
	loadErr  error
	index    map[string]message.ToolSpec
	schemas  map[string]*jsonschema.Schema
)

// loadIndex parses the embedded tool index and compiles each input schema.
func loadIndex() {
	var raw map[string]message.ToolSpec
	if err := json.Unmarshal(toolIndexJSON, &raw); err != nil {
		loadErr = fmt.Errorf("parsing tool index: %w", err)
		return
	}

	compiled := make(map[string]*jsonschema.Schema, len(raw))
	for name, spec := range raw {
		schema, err := jsonschema.CompileString(name+".json", string(spec.InputSchema))
		if err != nil {
			loadErr = fmt.Errorf("compiling schema for %s: %w", name, err)
			return
		}
		compiled[name] = schema
	}

	index = raw
	schemas = compiled
}

// LoadSpecs returns the tool specs sent to the model, sorted by name.
func LoadSpecs() ([]message.ToolSpec, error) {
	loadOnce.Do(loadIndex)
	if loadErr != nil {
		return nil, loadErr
	}
	specs := make([]message.ToolSpec, 0, len(index))
	for _, spec := range index {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

// New converts a model-produced tool use into a typed Tool. The arguments
// are checked against the tool's JSON Schema before decoding.
func New(use message.ToolUse) (Tool, error) {
	loadOnce.Do(loadIndex)
	if loadErr != nil {
		return nil, loadErr
	}

	schema, ok := schemas[use.Name]
	if !ok {
		return nil, fmt.Errorf("the tool \"%s\" is not supported by the client", use.Name)
	}

	var decoded any
	if err := json.Unmarshal(use.Args, &decoded); err != nil {
		return nil, fmt.Errorf("the arguments for %s are not valid JSON: %v", use.Name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("the arguments for %s do not match its schema: %v", use.Name, firstSchemaError(err))
	}

	var tool Tool
	switch use.Name {
	case "fs_read":
		tool = &FsRead{}
	case "fs_write":
		tool = &FsWrite{}
	case "execute_bash":
		tool = &ExecuteBash{}
	case "report_issue":
		tool = &ReportIssue{}
	default:
		return nil, fmt.Errorf("the tool \"%s\" is not supported by the client", use.Name)
	}

	if err := json.Unmarshal(use.Args, tool); err != nil {
		return nil, fmt.Errorf("decoding arguments for %s: %v", use.Name, err)
	}
	return tool, nil
}

// firstSchemaError flattens a jsonschema validation error to its most
// specific cause for a readable one-line message.
func firstSchemaError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}
