package trigger

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/cascbridge/internal/keyframes"
)

// Action names a requested operation.
type Action string

const (
	ActionImportObject    Action = "import_object"
	ActionImportAnimation Action = "import_animation"
	ActionImportScene     Action = "import_scene"
	ActionImportAllScenes Action = "import_all_scenes"
	ActionCleanKeyframes  Action = "clean_keyframes"
)

// commandFactories lists every decodable action.
var commandFactories = map[Action]func() Command{
	ActionImportObject:    func() Command { return &ImportObject{} },
	ActionImportAnimation: func() Command { return &ImportAnimation{} },
	ActionImportScene:     func() Command { return &ImportScene{} },
	ActionImportAllScenes: func() Command { return &ImportAllScenes{} },
	ActionCleanKeyframes:  func() Command { return &CleanKeyframes{} },
}

// KnownActions returns the decodable actions in lexical order.
func KnownActions() []Action {
	out := make([]Action, 0, len(commandFactories))
	for a := range commandFactories {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Known reports whether a can be decoded into a Command.
func (a Action) Known() bool {
	_, ok := commandFactories[a]
	return ok
}

// Command is a decoded trigger: one payload shape per action.
type Command interface {
	Action() Action
	Validate() error
}

// ImportObject asks the consumer to import an exported object.
type ImportObject struct {
	FBXPath    string `json:"fbx_path"`
	ObjectName string `json:"object_name"`
}

func (*ImportObject) Action() Action { return ActionImportObject }

func (c *ImportObject) Validate() error {
	if c.FBXPath == "" {
		return missingField(ActionImportObject, "fbx_path")
	}
	if c.ObjectName == "" {
		return missingField(ActionImportObject, "object_name")
	}
	return nil
}

// ImportAnimation asks the consumer to import an animation together with
// its keyframe metadata file.
type ImportAnimation struct {
	FBXPath    string `json:"fbx_path"`
	JSONPath   string `json:"json_path"`
	ObjectName string `json:"object_name"`
}

func (*ImportAnimation) Action() Action { return ActionImportAnimation }

func (c *ImportAnimation) Validate() error {
	switch {
	case c.FBXPath == "":
		return missingField(ActionImportAnimation, "fbx_path")
	case c.JSONPath == "":
		return missingField(ActionImportAnimation, "json_path")
	case c.ObjectName == "":
		return missingField(ActionImportAnimation, "object_name")
	}
	return nil
}

// ImportScene asks the consumer to import one exported scene.
type ImportScene struct {
	FBXPath string `json:"fbx_path"`
}

func (*ImportScene) Action() Action { return ActionImportScene }

func (c *ImportScene) Validate() error {
	if c.FBXPath == "" {
		return missingField(ActionImportScene, "fbx_path")
	}
	return nil
}

// ImportAllScenes asks the consumer to import a batch of scenes.
type ImportAllScenes struct {
	FBXPaths []string `json:"fbx_paths"`
}

func (*ImportAllScenes) Action() Action { return ActionImportAllScenes }

func (c *ImportAllScenes) Validate() error {
	if len(c.FBXPaths) == 0 {
		return missingField(ActionImportAllScenes, "fbx_paths")
	}
	return nil
}

// CleanKeyframes asks the consumer to drop every key except the marked
// frames. The frames come inline or from a metadata file at JSONPath.
type CleanKeyframes struct {
	Keyframes keyframes.Payload `json:"keyframes,omitempty"`
	JSONPath  string            `json:"json_path,omitempty"`
}

func (*CleanKeyframes) Action() Action { return ActionCleanKeyframes }

func (c *CleanKeyframes) Validate() error {
	if len(c.Keyframes) == 0 && c.JSONPath == "" {
		return missingField(ActionCleanKeyframes, "keyframes")
	}
	if _, err := keyframes.FromPayload(c.Keyframes); err != nil {
		return &DecodeError{
			Code:    ErrCodeInvalidPayload,
			Action:  string(ActionCleanKeyframes),
			Field:   "keyframes",
			Message: err.Error(),
		}
	}
	return nil
}

// Marks returns the inline frames as a mark set. Frames were checked by
// Validate, so an error here means Validate was skipped.
func (c *CleanKeyframes) Marks() (*keyframes.Set, error) {
	return keyframes.FromPayload(c.Keyframes)
}

// Decode turns a record into its typed Command and validates it.
func Decode(r Record) (Command, error) {
	factory, ok := commandFactories[Action(r.Action)]
	if !ok {
		return nil, &DecodeError{
			Code:    ErrCodeUnknownAction,
			Action:  r.Action,
			Message: "no command is registered for this action",
		}
	}

	cmd := factory()
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return nil, &DecodeError{Code: ErrCodeInvalidPayload, Action: r.Action, Message: err.Error()}
	}
	if err := json.Unmarshal(raw, cmd); err != nil {
		return nil, &DecodeError{Code: ErrCodeInvalidPayload, Action: r.Action, Message: err.Error()}
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// PayloadOf converts a command back into the free-form data object
// written into a trigger file.
func PayloadOf(cmd Command) (map[string]any, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("payload of %s: %w", cmd.Action(), err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload of %s: %w", cmd.Action(), err)
	}
	return out, nil
}
