package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"linkcore/internal/serializer"
	"linkcore/pkg/domain"
)

func newCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		recordType  string
		file        string
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "create --type <type> [--file payload.json]",
		Short: "Create records and link them into their inverse fields",
		Long: `Create parses a payload holding either an array of records or an object
with a "records" array, validates every record against the schema, and
persists them together with the inverse-link updates they imply.

The payload is read from --file, or from stdin when --file is "-".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				resp, err := a.service.Create(ctx, &domain.Request{
					Type:        recordType,
					Payload:     payload,
					ContentType: contentType,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), newRecordsOutput(resp.Records, resp.Change))
			})
		},
	}
	cmd.Flags().StringVarP(&recordType, "type", "t", "", "record type to create")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	cmd.Flags().StringVar(&contentType, "content-type", serializer.ContentTypeJSON, "payload content type (application/json or application/bson)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	var recordType string
	cmd := &cobra.Command{
		Use:   "delete --type <type> <id>...",
		Short: "Delete records and unlink them from their inverse fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				resp, err := a.service.Delete(ctx, &domain.Request{Type: recordType, IDs: args})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), newRecordsOutput(resp.Records, resp.Change))
			})
		},
	}
	cmd.Flags().StringVarP(&recordType, "type", "t", "", "record type to delete")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newFindCommand(opts *RootOptions) *cobra.Command {
	var (
		recordType string
		fields     []string
	)
	cmd := &cobra.Command{
		Use:   "find --type <type> [id...]",
		Short: "Print stored records; all records of the type when no ids are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var findOpts *domain.Options
				if len(fields) > 0 {
					findOpts = &domain.Options{Fields: fields}
				}
				records, err := a.service.Find(ctx, recordType, args, findOpts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), newRecordsOutput(records, nil))
			})
		},
	}
	cmd.Flags().StringVarP(&recordType, "type", "t", "", "record type to read")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "comma-separated fields to return")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func readPayload(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file) // #nosec G304 -- operator-supplied payload path
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}
