package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/artifact"
	"github.com/vango-dev/splitrender/pkg/buildinfo"
	"github.com/vango-dev/splitrender/pkg/document"
	"github.com/vango-dev/splitrender/pkg/envelope"
)

func inspectCmd() *cobra.Command {
	var build string

	cmd := &cobra.Command{
		Use:   "inspect [envelope|-]",
		Short: "Decrypt an envelope with a build's key",
		Long: `Open a sealed envelope and print its payload as JSON. The argument is
the envelope itself, or "-" to read it from stdin. Stdin may also hold a
whole rendered document, in which case the envelope is taken from its
data script.

Examples:
  splitrender inspect --build dist 3q2+7w...
  curl -s localhost:3000/posts/1 | splitrender inspect --build dist -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed := args[0]
			if sealed == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				if sealed, err = envelopeFrom(string(data)); err != nil {
					return err
				}
			}

			store, err := artifact.Open(cmd.Context(), build)
			if err != nil {
				return err
			}
			record, err := buildinfo.Load(cmd.Context(), store)
			if err != nil {
				return err
			}

			var payload any
			if err := envelope.Open(record.Key[:], sealed, &payload); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}

	cmd.Flags().StringVarP(&build, "build", "b", "dist", "Build location (directory or s3://bucket/prefix)")

	return cmd
}

// envelopeFrom returns the envelope in input, which is either a bare
// envelope or a rendered document.
func envelopeFrom(input string) (string, error) {
	if !strings.Contains(input, document.DataScriptID) {
		return strings.TrimSpace(input), nil
	}

	z := html.NewTokenizer(strings.NewReader(input))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", errors.Newf(errors.CategoryRuntime, "document has no %s script", document.DataScriptID)
		case html.StartTagToken:
			if !isDataScript(z.Token()) {
				continue
			}
			if z.Next() != html.TextToken {
				return "", errors.Newf(errors.CategoryRuntime, "%s script is empty", document.DataScriptID)
			}
			var data struct {
				Envelope string `json:"envelope"`
			}
			if err := json.Unmarshal(z.Text(), &data); err != nil {
				return "", errors.Newf(errors.CategoryRuntime, "document data script: %v", err)
			}
			return data.Envelope, nil
		}
	}
}

func isDataScript(t html.Token) bool {
	if t.Data != "script" {
		return false
	}
	for _, a := range t.Attr {
		if a.Key == "id" && a.Val == document.DataScriptID {
			return true
		}
	}
	return false
}
