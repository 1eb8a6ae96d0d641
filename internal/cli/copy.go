package cli

import (
	"github.com/spf13/cobra"
)

// CopyResult reports where an artifact was copied.
type CopyResult struct {
	Source string `json:"source"`
	Path   string `json:"path"`
}

func (r CopyResult) String() string {
	return r.Path
}

// NewCopyCommand creates the copy command.
func NewCopyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <file>",
		Short: "Copy a file into the exchange folder",
		Long: `Copy a file into the exchange subfolder named after its extension
(fbx/, json/, ...), keeping its mode and modification time, and print the
new path.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := rootOpts.logger(cmd)
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			fs := rootOpts.fs()
			layout, _, err := resolveLayout(fs, cfg, logger)
			if err != nil {
				return err
			}
			dst, err := copyOne(fs, layout, args[0])
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(CopyResult{Source: args[0], Path: dst})
		},
	}
}
