package remote

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// chatCompletionSchema accepts the minimal chat-completions reply we rely on:
// a non-empty choices array whose first element carries message.content as a
// non-empty string. Empty content is rejected here, before integrity
// validation ever sees it.
const chatCompletionSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["choices"],
	"properties": {
		"choices": {
			"type": "array",
			"minItems": 1,
			"prefixItems": [
				{
					"type": "object",
					"required": ["message"],
					"properties": {
						"message": {
							"type": "object",
							"required": ["content"],
							"properties": {
								"content": {"type": "string", "minLength": 1}
							}
						}
					}
				}
			]
		}
	}
}`

var shapeSchema = jsonschema.MustCompileString("chat_completion.json", chatCompletionSchema)

// ExtractContent validates the response shape and returns the generated text
// at choices[0].message.content. Any rejection is a *ShapeError.
func ExtractContent(raw []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", &ShapeError{Reason: "response is not valid JSON", Err: err}
	}
	if err := shapeSchema.Validate(doc); err != nil {
		return "", &ShapeError{Reason: "unexpected chat completion shape", Err: err}
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return "", &ShapeError{Reason: "response is not an object"}
	}
	choices, ok := root["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", &ShapeError{Reason: "choices missing or empty"}
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", &ShapeError{Reason: "first choice malformed"}
	}
	msg, ok := choice["message"].(map[string]any)
	if !ok {
		return "", &ShapeError{Reason: "first choice has no message"}
	}
	content, ok := msg["content"].(string)
	if !ok || content == "" {
		return "", &ShapeError{Reason: "message content missing or empty"}
	}
	return content, nil
}
