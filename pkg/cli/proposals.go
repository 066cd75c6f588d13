package cli

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"notes-assistant/pkg/assistant"
	"notes-assistant/pkg/db"
	"notes-assistant/pkg/room"

	"github.com/spf13/cobra"
)

type proposalFlags struct {
	file     string
	proposal string
}

func (f *proposalFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "Text file to edit (required)")
	cmd.Flags().StringVar(&f.proposal, "proposal", "-", "Proposal JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
}

func (f *proposalFlags) readProposal(cmd *cobra.Command) ([]byte, error) {
	if f.proposal == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(f.proposal)
}

// openFile returns a service whose store is the directory holding the file,
// and the file's ID within it.
func (f *proposalFlags) openFile() (*assistant.Service, *room.RoomManager, string, error) {
	abs, err := filepath.Abs(f.file)
	if err != nil {
		return nil, nil, "", err
	}
	store := db.NewFileContentStore(filepath.Dir(abs))
	rooms := room.NewRoomManager(store)
	return assistant.NewService(store, rooms), rooms, filepath.Base(abs), nil
}

func newPreviewCmd(app *App) *cobra.Command {
	var flags proposalFlags

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Validate a proposal and print the content it would produce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := flags.readProposal(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			svc, rooms, id, err := flags.openFile()
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rooms.Shutdown()

			p, err := svc.ProposeAndPreview(raw)
			if err != nil {
				return writeErr(cmd, err)
			}
			preview, err := svc.Preview(cmd.Context(), id, p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"proposal": p,
				"preview":  preview,
			})
		},
	}

	flags.bind(cmd)
	return cmd
}

func newApplyCmd(app *App) *cobra.Command {
	var flags proposalFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Validate a proposal and write the result to the file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := flags.readProposal(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			svc, rooms, id, err := flags.openFile()
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rooms.Shutdown()

			p, err := svc.ProposeAndPreview(raw)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := svc.AcceptForDocument(cmd.Context(), id, p)
			if errors.Is(err, db.ErrDocumentNotFound) {
				return writeErr(cmd, errors.New("file "+flags.file+" does not exist"))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, res)
		},
	}

	flags.bind(cmd)
	return cmd
}
