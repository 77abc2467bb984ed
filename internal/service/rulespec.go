package service

import (
	"encoding/json"
	"fmt"

	"flowdesk/internal/model"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// actionsSchema constrains a rule's action chain: each action is one
// of the closed set of variants with its required parameters present.
const actionsSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["type"],
		"oneOf": [
			{
				"properties": {
					"type": {"const": "notify"},
					"recipient": {"type": "string", "minLength": 1}
				},
				"required": ["type", "recipient"]
			},
			{
				"properties": {
					"type": {"const": "send_email"},
					"recipient": {"type": "string", "minLength": 1},
					"subject": {"type": "string", "minLength": 1}
				},
				"required": ["type", "recipient", "subject"]
			},
			{
				"properties": {
					"type": {"const": "assign"},
					"assignTo": {"type": "string", "minLength": 1}
				},
				"required": ["type", "assignTo"]
			},
			{
				"properties": {
					"type": {"const": "change_status"},
					"toStatus": {"enum": ["queue", "active", "review", "done"]}
				},
				"required": ["type", "toStatus"]
			},
			{
				"properties": {
					"type": {"const": "change_priority"},
					"priority": {"enum": ["low", "normal", "high"]}
				},
				"required": ["type", "priority"]
			},
			{
				"properties": {
					"type": {"const": "webhook"},
					"url": {"type": "string", "pattern": "^https?://"}
				},
				"required": ["type", "url"]
			}
		]
	}
}`

var actionsValidator = jsonschema.MustCompileString("actions.json", actionsSchema)

// ValidateActions checks an action chain against the closed action
// variant schema before a rule is stored.
func ValidateActions(actions []model.Action) error {
	doc, err := json.Marshal(actions)
	if err != nil {
		return model.NewValidationError("actions", err.Error())
	}
	var v interface{}
	if err := json.Unmarshal(doc, &v); err != nil {
		return model.NewValidationError("actions", err.Error())
	}
	if err := actionsValidator.Validate(v); err != nil {
		return model.NewValidationError("actions", fmt.Sprintf("invalid action chain: %v", err))
	}
	return nil
}
