package podcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseOutline validates a model response as an outline with exactly want
// segments.
func ParseOutline(raw string, want int) (Outline, error) {
	items, err := decodeArray(raw, "segments")
	if err != nil {
		return Outline{}, err
	}
	if len(items) != want {
		return Outline{}, fieldError("segments", "expected %d entries, got %d", want, len(items))
	}
	segments := make([]Segment, 0, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("segments[%d]", i)
		obj, err := decodeObject(item, prefix)
		if err != nil {
			return Outline{}, err
		}
		name, err := requireString(obj, prefix+".name")
		if err != nil {
			return Outline{}, err
		}
		description, err := requireString(obj, prefix+".description")
		if err != nil {
			return Outline{}, err
		}
		size, err := requireString(obj, prefix+".size")
		if err != nil {
			return Outline{}, err
		}
		if !Size(size).Valid() {
			return Outline{}, fieldError(prefix+".size", "must be one of short, medium, long; got %q", size)
		}
		segments = append(segments, Segment{Name: name, Description: description, Size: Size(size)})
	}
	return Outline{Segments: segments}, nil
}

// ParseTranscript validates a model response as the turns of one segment. Every
// speaker must appear in speakers verbatim and at least minTurns turns are
// required.
func ParseTranscript(raw string, speakers []string, minTurns int) ([]Turn, error) {
	items, err := decodeArray(raw, "transcript")
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(speakers))
	for _, name := range speakers {
		known[name] = struct{}{}
	}
	turns := make([]Turn, 0, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("transcript[%d]", i)
		obj, err := decodeObject(item, prefix)
		if err != nil {
			return nil, err
		}
		speaker, err := requireString(obj, prefix+".speaker")
		if err != nil {
			return nil, err
		}
		if _, ok := known[speaker]; !ok {
			return nil, &UnknownSpeakerError{
				Field:   prefix + ".speaker",
				Speaker: speaker,
				Known:   append([]string(nil), speakers...),
			}
		}
		dialogue, err := requireString(obj, prefix+".dialogue")
		if err != nil {
			return nil, err
		}
		turns = append(turns, Turn{Speaker: speaker, Dialogue: dialogue})
	}
	if len(turns) < minTurns {
		return nil, fieldError("transcript", "expected at least %d turns, got %d", minTurns, len(turns))
	}
	return turns, nil
}

func decodeArray(raw, key string) ([]json.RawMessage, error) {
	payload := ExtractJSON(raw)
	if payload == "" {
		return nil, fieldError("", "empty response")
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, fieldError("", "response is not a JSON object: %v (payload snippet: %s)", err, Snippet(payload, 160))
	}
	value, ok := envelope[key]
	if !ok {
		return nil, fieldError(key, "missing")
	}
	if isNull(value) {
		return nil, fieldError(key, "must be an array, got null")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, fieldError(key, "must be an array, got %s", jsonKind(value))
	}
	return items, nil
}

func decodeObject(raw json.RawMessage, field string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if isNull(raw) {
		return nil, fieldError(field, "must be an object, got null")
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fieldError(field, "must be an object, got %s", jsonKind(raw))
	}
	return obj, nil
}

func requireString(obj map[string]json.RawMessage, field string) (string, error) {
	key := field[strings.LastIndexByte(field, '.')+1:]
	raw, ok := obj[key]
	if !ok {
		return "", fieldError(field, "missing")
	}
	var value string
	if isNull(raw) {
		return "", fieldError(field, "must be a string, got null")
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fieldError(field, "must be a string, got %s", jsonKind(raw))
	}
	if strings.TrimSpace(value) == "" {
		return "", fieldError(field, "must not be empty")
	}
	return value, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "nothing"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
