package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/JonMunkholm/inventory/internal/application"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/web/middleware"
	"github.com/spf13/cobra"
)

type identityFlags struct {
	user string
	name string
	role string
	area string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "Requester id (required)")
	cmd.Flags().StringVar(&f.name, "name", "", "Requester display name")
	cmd.Flags().StringVar(&f.role, "role", middleware.RoleOperator, "Requester role: admin, supervisor, operador or externo")
	cmd.Flags().StringVar(&f.area, "area", "", "Requester area, e.g. sistemas")
	_ = cmd.MarkFlagRequired("user")
}

func (f *identityFlags) requester() core.Requester {
	name := f.name
	if name == "" {
		name = f.user
	}
	return middleware.RequesterForRole(f.user, name, f.role, f.area)
}

type batchFlags struct {
	newBatch string
	batch    string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.newBatch, "new-batch", "", "Create a new batch with this description for the imported items")
	cmd.Flags().StringVar(&f.batch, "batch", "", "Attach the imported items to this existing batch code")
	cmd.MarkFlagsMutuallyExclusive("new-batch", "batch")
}

func (f *batchFlags) choice() core.BatchChoice {
	switch {
	case f.newBatch != "":
		return core.BatchChoice{Mode: core.BatchNew, Description: f.newBatch}
	case f.batch != "":
		return core.BatchChoice{Mode: core.BatchExisting, Code: f.batch}
	default:
		return core.BatchChoice{}
	}
}

func openUpload(path string) (core.Upload, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Upload{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return core.Upload{}, nil, err
	}
	up := core.Upload{Name: filepath.Base(path), Size: info.Size(), Body: f}
	return up, func() { f.Close() }, nil
}

func newPreviewCmd() *cobra.Command {
	var id identityFlags
	var batch batchFlags
	var verbose bool

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Validate a workbook and print the report without creating anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, closeFile, err := openUpload(args[0])
			if err != nil {
				return err
			}
			defer closeFile()

			return withApp(cmd.Context(), func(app *application.App) error {
				res, err := app.Service.Preview(cmd.Context(), id.requester(), up, batch.choice())
				if err != nil {
					return userError(err)
				}
				printReport(cmd.OutOrStdout(), res.Report, verbose)
				if !res.Committable {
					return errors.New("the file has rejected rows; nothing can be imported")
				}
				return nil
			})
		},
	}
	id.register(cmd)
	batch.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List valid rows too")
	return cmd
}

func newImportCmd() *cobra.Command {
	var id identityFlags
	var batch batchFlags
	var yes bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a workbook and create every row, or nothing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, closeFile, err := openUpload(args[0])
			if err != nil {
				return err
			}
			defer closeFile()

			return withApp(cmd.Context(), func(app *application.App) error {
				res, err := app.Service.Confirm(cmd.Context(), id.requester(), core.ConfirmRequest{
					Upload:    &up,
					Choice:    batch.choice(),
					Confirmed: yes,
				})
				var rejected *core.RejectedError
				if errors.As(err, &rejected) {
					printReport(cmd.OutOrStdout(), rejected.Report, false)
				}
				if err != nil {
					if res != nil {
						printCommitFailure(cmd.OutOrStdout(), res)
					}
					return userError(err)
				}
				printCommit(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	id.register(cmd)
	batch.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the import (required to create records)")
	return cmd
}

// userError explains err the way the web UI does, with its support code
// and suggested action. Errors without a specific message keep their own
// text under the fallback code.
func userError(err error) error {
	if !core.IsUserFacing(err) {
		return fmt.Errorf("[%s] %w", core.MapError(err).Code, err)
	}
	return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
}

// printReport writes the counts and every row that is not valid. verbose
// lists valid rows too.
func printReport(w io.Writer, r core.ImportReport, verbose bool) {
	fmt.Fprintf(w, "rows: %d  valid: %d  warned: %d  rejected: %d\n",
		r.TotalRows, r.ValidCount, r.WarnedCount, r.RejectedCount)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	header := false
	for _, row := range r.Rows {
		if row.Status == core.StatusValid && !verbose {
			continue
		}
		if !header {
			fmt.Fprintln(tw, "ROW\tSERIAL\tSTATUS\tMESSAGE")
			header = true
		}
		serial := row.Row.Value(core.ColSerial)
		msgs := append(append([]core.ValidationError{}, row.Outcome.Errors...), row.Outcome.Warnings...)
		if len(msgs) == 0 {
			fmt.Fprintf(tw, "%d\t%s\t%s\t\n", row.Row.RowNumber, serial, row.Status)
			continue
		}
		for _, m := range msgs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", row.Row.RowNumber, serial, row.Status, m.Error())
		}
	}
}

// printCommitFailure reports a commit that rolled back.
func printCommitFailure(w io.Writer, res *core.CommitResult) {
	fmt.Fprintf(w, "created %d items: %s\n", res.CreatedCount, res.Failure)
}

func printCommit(w io.Writer, res *core.CommitResult) {
	fmt.Fprintf(w, "created %d items", res.CreatedCount)
	if res.BatchCode != "" {
		fmt.Fprintf(w, " in batch %s", res.BatchCode)
	}
	fmt.Fprintln(w)
	if res.ReceiptKey != "" {
		fmt.Fprintf(w, "receipt: %s\n", res.ReceiptKey)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "ROW\tCODE\tSERIAL\tTAG\tNAME")
	for _, item := range res.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", item.RowNumber, item.Code, item.Serial, item.Tag, item.Name)
	}
}
