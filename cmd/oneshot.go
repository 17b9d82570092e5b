package cmd

import (
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/AdeilsonR/puppeteer-themis/api/schemas"
	"github.com/AdeilsonR/puppeteer-themis/internal/observability"
	"github.com/AdeilsonR/puppeteer-themis/internal/themis"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "buscar <numero-processo>",
		Aliases: []string{"search"},
		Short:   "Look a case up once and print the result as JSON",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			comps, err := initializeComponents(cmd.Context(), cfg, observability.GetLogger())
			defer comps.Shutdown()
			if err != nil {
				return err
			}

			record, err := comps.Workflow.Search(cmd.Context(), args[0])
			if err != nil {
				return printFailure(cmd.OutOrStdout(), err)
			}
			resp := schemas.SearchResponse{CaseNumber: args[0], Result: themis.NoResultMarker}
			if record != nil {
				resp.Result = schemas.CaseRecord{
					Number:     record.Number,
					Type:       record.Type,
					LastUpdate: record.LastUpdate,
					Status:     record.Status,
				}
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var payload themis.RegistrationPayload
	registerCmd := &cobra.Command{
		Use:     "cadastrar <numero-processo>",
		Aliases: []string{"register"},
		Short:   "Register a case awaiting registration and print the outcome as JSON",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			comps, err := initializeComponents(cmd.Context(), cfg, observability.GetLogger())
			defer comps.Shutdown()
			if err != nil {
				return err
			}

			result, err := comps.Workflow.Register(cmd.Context(), args[0], payload)
			if err != nil {
				return printFailure(cmd.OutOrStdout(), err)
			}
			return printJSON(cmd.OutOrStdout(), schemas.RegisterResponse{
				CaseNumber: args[0],
				Status:     string(result.Status),
				Message:    result.Message,
			})
		},
	}
	registerCmd.Flags().StringVar(&payload.Origin, "origem", "", "originating party (defaults to registration.default_origin)")
	registerCmd.Flags().StringVar(&payload.ClaimValue, "valor-causa", "", `claim value, e.g. "R$ 10.000,00"`)
	registerCmd.Flags().StringVar(&payload.AccruedValue, "valor-vencidas", "", "accrued installments value")
	registerCmd.Flags().StringVar(&payload.FutureValue, "valor-vincendas", "", "future installments value")
	return registerCmd
}

// printFailure writes the same error body the HTTP API returns and hands the
// error back so the process exits non-zero.
func printFailure(w io.Writer, err error) error {
	body := schemas.ErrorResponse{Error: err.Error(), Kind: themis.ErrorKind(err), Diagnostic: themis.DiagnosticOf(err)}
	if perr := printJSON(w, body); perr != nil {
		return perr
	}
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
