package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/config"
	"github.com/felixgeelhaar/okr/internal/errors"
	"github.com/felixgeelhaar/okr/internal/tui"
	"github.com/felixgeelhaar/okr/internal/ux"
)

func (c *cli) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration",
		Long: `Configuration lives in $OKR_HOME/config.yaml (default ~/.okr).
Flags override environment variables, which override the file.`,
	}
	cmd.AddCommand(
		noBoot(c.newConfigViewCmd()),
		noBoot(c.newConfigGetCmd()),
		noBoot(c.newConfigSetCmd()),
		noBoot(c.newConfigPathCmd()),
	)
	return cmd
}

func (c *cli) newConfigViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := ux.NewTable("Configuration", "Key", "Value")
			for _, key := range config.Keys() {
				v, err := c.cfg.Get(key)
				if err != nil {
					return err
				}
				t.AddRow(key, v)
			}
			return c.render(cmd, c.cfg, t)
		},
	}
}

func (c *cli) newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one effective configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.cfg.Get(args[0])
			if err != nil {
				return err
			}
			return c.render(cmd, map[string]string{args[0]: v}, ux.Message{Text: v})
		},
	}
}

// configChoices lists the accepted values of enumerated keys.
var configChoices = map[string][]string{
	"logging.level":   {"debug", "info", "warn", "error"},
	"logging.format":  {"text", "json"},
	"output.format":   {"text", "json", "yaml"},
	"output.no_color": {"false", "true"},
}

func (c *cli) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Change a value in the configuration file",
		Long: `Change a value in the configuration file. When the value is omitted in
an interactive terminal it is asked for.`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			// Only the file is edited; environment and flag overrides stay out of it.
			file, err := config.Load(c.home)
			if err != nil {
				return err
			}
			current, err := file.Get(key)
			if err != nil {
				return err
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else if value, err = promptConfigValue(key, current); err != nil {
				return err
			}

			if err := file.Set(key, value); err != nil {
				return err
			}
			if err := config.Save(file, c.home); err != nil {
				return err
			}
			v, _ := file.Get(key)
			return c.success(cmd, map[string]string{key: v}, "Set %s = %s", key, v)
		},
	}
}

func promptConfigValue(key, current string) (string, error) {
	if !tui.ShouldPrompt() {
		return "", errors.New(errors.ErrCodeConfigInvalid, "missing value for "+key).
			WithSuggestion(fmt.Sprintf("Run 'okr config set %s <value>'", key))
	}
	if choices, ok := configChoices[key]; ok {
		return tui.PromptForSelect(key, choices)
	}
	return tui.PromptForString(tui.Prompt{Message: key, Default: current, Required: true})
}

type paths struct {
	Home   string `json:"home" yaml:"home"`
	Config string `json:"config" yaml:"config"`
	State  string `json:"state" yaml:"state"`
}

func (p paths) RenderText(s ux.Styles) string {
	return ux.NewDetail("").
		Add("Home", p.Home).
		Add("Config", p.Config).
		Add("State", p.State).
		RenderText(s)
}

func (c *cli) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show where configuration and session state are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := paths{Home: c.home, Config: config.Path(c.home), State: config.StatePath(c.home)}
			return c.render(cmd, p, p)
		},
	}
}
