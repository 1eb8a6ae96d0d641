package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/cascbridge/internal/exchange"
	"github.com/roach88/cascbridge/internal/keyframes"
	"github.com/roach88/cascbridge/internal/trigger"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Data   string
	FBX    []string
	JSON   string
	Object string
	Frames string
	Copy   bool
	Open   bool
}

// SendResult describes a written trigger.
type SendResult struct {
	Action   trigger.Action `json:"action"`
	Path     string         `json:"path"`
	Launched bool           `json:"launched"`
}

func (r SendResult) String() string {
	if r.Launched {
		return r.Path + " (cascadeur started)"
	}
	return r.Path
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <action>",
		Short: "Write a trigger for the peer",
		Long: fmt.Sprintf(`Write a trigger file into this role's trigger folder.

The payload comes from --data (a JSON object) and the typed flags, which
win over --data keys. It is validated against the action before anything
is written. Known actions: %s.

Example:
  cascbridge send import_object --fbx ./hero.fbx --object Hero --copy
  cascbridge send clean_keyframes --frames 1,12,40
  cascbridge send import_all_scenes --fbx a.fbx --fbx b.fbx`, joinActions()),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "payload as a JSON object")
	cmd.Flags().StringSliceVar(&opts.FBX, "fbx", nil, "FBX file (repeat for import_all_scenes)")
	cmd.Flags().StringVar(&opts.JSON, "json", "", "keyframe metadata file")
	cmd.Flags().StringVar(&opts.Object, "object", "", "object name")
	cmd.Flags().StringVar(&opts.Frames, "frames", "", "marked frames, e.g. 1,12,40")
	cmd.Flags().BoolVar(&opts.Copy, "copy", false, "copy referenced files into the exchange folder first")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "start Cascadeur after writing (also auto_open_cascadeur)")

	return cmd
}

func joinActions() string {
	names := make([]string, 0, len(trigger.KnownActions()))
	for _, a := range trigger.KnownActions() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

func runSend(opts *SendOptions, action string, cmd *cobra.Command) error {
	if !trigger.Action(action).Known() {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown action %q: must be one of %s", action, joinActions()))
	}
	logger := opts.logger(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	fs := opts.fs()
	layout, _, err := resolveLayout(fs, cfg, logger)
	if err != nil {
		return err
	}

	payload, err := opts.payload(fs, layout, trigger.Action(action), logger)
	if err != nil {
		return err
	}

	c := opts.clock()
	command, err := trigger.Decode(trigger.NewRecord(action, c.Now(), payload))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid trigger", err)
	}

	writer := exchange.NewWriter(fs, layout, cfg.Role,
		exchange.WithWriterClock(c),
		exchange.WithWriteMode(cfg.WriteMode),
	)
	path, err := writer.WriteCommand(command)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to write trigger", err)
	}
	logger.Debug("trigger written", "path", path, "action", action)

	result := SendResult{Action: command.Action(), Path: path}
	if opts.Open || cfg.AutoOpenCascadeur {
		if err := opts.newLauncher(cfg, logger).Start(); err != nil {
			logger.Warn("trigger written but cascadeur was not started", "error", err)
		} else {
			result.Launched = true
		}
	}
	return opts.formatter(cmd).Success(result)
}

// payload merges --data with the typed flags for action.
func (opts *SendOptions) payload(fs afero.Fs, layout exchange.Layout, action trigger.Action, logger *slog.Logger) (map[string]any, error) {
	payload := map[string]any{}
	if opts.Data != "" {
		if err := json.Unmarshal([]byte(opts.Data), &payload); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --data", err)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}

	fbx := opts.FBX
	jsonPath := opts.JSON
	if opts.Copy {
		var err error
		if fbx, err = copyAll(fs, layout, fbx); err != nil {
			return nil, err
		}
		if jsonPath != "" {
			if jsonPath, err = copyOne(fs, layout, jsonPath); err != nil {
				return nil, err
			}
		}
	}

	var marks *keyframes.Set
	if opts.Frames != "" {
		var err error
		if marks, err = keyframes.ParseList(opts.Frames); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --frames", err)
		}
	}

	switch action {
	case trigger.ActionImportAllScenes:
		if len(fbx) > 0 {
			paths := make([]any, len(fbx))
			for i, p := range fbx {
				paths[i] = p
			}
			payload["fbx_paths"] = paths
		}
	case trigger.ActionCleanKeyframes:
		if marks != nil {
			payload["keyframes"] = marks.Payload()
		}
	default:
		if len(fbx) > 1 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s takes a single --fbx", action))
		}
		if len(fbx) == 1 {
			payload["fbx_path"] = fbx[0]
		}
		if action == trigger.ActionImportAnimation && jsonPath == "" && marks != nil {
			saved, err := saveMarks(fs, layout, marks, opts.clock().Now())
			if err != nil {
				return nil, err
			}
			logger.Debug("keyframe metadata saved", "path", saved)
			jsonPath = saved
		}
	}

	if jsonPath != "" {
		payload["json_path"] = jsonPath
	}
	if opts.Object != "" {
		payload["object_name"] = opts.Object
	}
	return payload, nil
}

// saveMarks writes marks as a metadata file under the exchange json/ folder.
func saveMarks(fs afero.Fs, layout exchange.Layout, marks *keyframes.Set, now time.Time) (string, error) {
	path, err := exchange.ExportPath(fs, layout, "json", now)
	if err == nil {
		path, err = keyframes.Save(fs, path, marks)
	}
	if err != nil {
		return "", WrapExitError(ExitFailure, "failed to save keyframes", err)
	}
	return path, nil
}

func copyOne(fs afero.Fs, layout exchange.Layout, src string) (string, error) {
	dst, err := exchange.CopyArtifact(fs, layout, src)
	if err != nil {
		return "", WrapExitError(ExitFailure, "failed to copy artifact", err)
	}
	return dst, nil
}

func copyAll(fs afero.Fs, layout exchange.Layout, srcs []string) ([]string, error) {
	out := make([]string, len(srcs))
	for i, src := range srcs {
		dst, err := copyOne(fs, layout, src)
		if err != nil {
			return nil, err
		}
		out[i] = dst
	}
	return out, nil
}
