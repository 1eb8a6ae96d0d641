package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cascbridge/internal/config"
	"github.com/roach88/cascbridge/internal/exchange"
)

// ResolveResult describes the resolved exchange folder.
type ResolveResult struct {
	Path        string            `json:"path"`
	Location    exchange.Location `json:"location"`
	Role        exchange.Role     `json:"role"`
	OutgoingDir string            `json:"outgoing_dir"`
	IncomingDir string            `json:"incoming_dir"`
	Fallback    string            `json:"fallback,omitempty"`
}

func (r ResolveResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", r.Path, r.Location)
	fmt.Fprintf(&b, "  writes: %s\n", r.OutgoingDir)
	fmt.Fprintf(&b, "  watches: %s", r.IncomingDir)
	if r.Fallback != "" {
		fmt.Fprintf(&b, "\n  fallback: %s", r.Fallback)
	}
	return b.String()
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the exchange folder",
		Long: `Resolve the exchange folder from the configured location strategy,
create it with both trigger folders, and print where this role writes and
what it watches. A strategy lacking information falls back to the temp
folder and the reason is shown.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, cmd)
		},
	}
}

func runResolve(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	layout, res, err := resolveLayout(opts.fs(), cfg, opts.logger(cmd))
	if err != nil {
		return err
	}

	out := ResolveResult{
		Path:        res.Path,
		Location:    res.Location,
		Role:        cfg.Role,
		OutgoingDir: layout.TriggerDir(cfg.Role),
		IncomingDir: layout.TriggerDir(cfg.Role.Peer()),
	}
	if res.Fallback != nil {
		out.Fallback = res.Fallback.Error()
	}
	return opts.formatter(cmd).Success(out)
}

// configView prints the effective config as YAML in text mode. The
// embedded struct keeps the JSON form flat.
type configView struct {
	config.Config
}

func (v configView) String() string {
	data, err := yaml.Marshal(v.Config)
	if err != nil {
		return err.Error()
	}
	return strings.TrimRight(string(data), "\n")
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the config file,
CASCBRIDGE_* environment variables and global flags. Invalid settings are
reported field by field.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(configView{cfg})
		},
	}
}
