package definition

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dukex/maestro/pkg/models"
)

// Load reads and fully validates a workflow definition file. YAML and JSON
// documents are both accepted; JSON is a YAML subset.
func Load(path string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrKindParse, Message: fmt.Sprintf("cannot read %s", path), Err: err}
	}

	return Parse(data)
}

// Parse decodes and fully validates a workflow definition document: schema
// shape first, then struct constraints, then semantic validation.
func Parse(data []byte) (*models.WorkflowDefinition, error) {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, &Error{Kind: ErrKindParse, Message: "malformed document", Err: err}
	}

	if err := checkSchema(document); err != nil {
		return nil, err
	}

	def := &models.WorkflowDefinition{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, &Error{Kind: ErrKindParse, Message: "cannot decode definition", Err: err}
	}

	if err := Validate(def); err != nil {
		return nil, err
	}

	return def, nil
}
