package refine

import (
	"encoding/json"

	"github.com/jackzampolin/semtag/internal/providers"
)

// ReplySchema is the JSON schema a refinement reply must satisfy.
var ReplySchema = providers.MustCompileSchema(json.RawMessage(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["surfaceForm", "proposedCode", "confidence"],
		"properties": {
			"surfaceForm": {"type": "string", "minLength": 1},
			"proposedCode": {"type": "string"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}
}`))
