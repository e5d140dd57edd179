package podcast

// Schema describes an expected response shape. The description is handed to
// the model verbatim as format instructions.
type Schema struct {
	name        string
	description string
}

func (s Schema) Name() string        { return s.name }
func (s Schema) Description() string { return s.description }

var (
	// OutlineSchema is the response shape of the outline stage.
	OutlineSchema = Schema{name: "outline", description: outlineSchemaJSON}
	// TranscriptSchema is the response shape of one transcript segment.
	TranscriptSchema = Schema{name: "transcript", description: transcriptSchemaJSON}
)

const outlineSchemaJSON = `{
  "type": "object",
  "properties": {
    "segments": {
      "type": "array",
      "description": "Ordered list of podcast segments",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "description": "Name of the segment"},
          "description": {"type": "string", "description": "Description of the segment content"},
          "size": {"type": "string", "enum": ["short", "medium", "long"], "description": "Relative length of the segment"}
        },
        "required": ["name", "description", "size"]
      }
    }
  },
  "required": ["segments"]
}`

const transcriptSchemaJSON = `{
  "type": "object",
  "properties": {
    "transcript": {
      "type": "array",
      "description": "Ordered dialogue turns for this segment",
      "items": {
        "type": "object",
        "properties": {
          "speaker": {"type": "string", "description": "Exact name of the speaker"},
          "dialogue": {"type": "string", "description": "What the speaker says"}
        },
        "required": ["speaker", "dialogue"]
      }
    }
  },
  "required": ["transcript"]
}`
