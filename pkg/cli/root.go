package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type App struct {
	Format     string
	PrettyJSON bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "notes",
		Short:        "Notes assistant server and edit proposal tools",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the HTTP and websocket server
  notes serve

  # Show what a proposal would do to a file
  notes preview --file today.md --proposal edit.json

  # Apply it
  notes apply --file today.md --proposal edit.json
`),
	}

	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("NOTES_FORMAT", "json"), "Output format (json|yaml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newPreviewCmd(app))
	cmd.AddCommand(newApplyCmd(app))

	return cmd
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	w := cmd.OutOrStdout()
	switch app.Format {
	case "", "json":
		enc := json.NewEncoder(w)
		if app.PrettyJSON {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(v)
	case "yaml":
		// round-trip through JSON so custom MarshalJSON field names are kept
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	return fmt.Errorf("unknown format %q (want json or yaml)", app.Format)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
