package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/splitrender/internal/errors"
	"github.com/vango-dev/splitrender/pkg/buildinfo"
)

func keygenCmd() *cobra.Command {
	var (
		out   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Write a fresh build-info record",
		Long: `Generate the build timestamp and envelope key of a new build and write
them to build-info.json. Run it once per build, before deploying.

Examples:
  splitrender keygen --out dist
  splitrender keygen --out dist --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(out, buildinfo.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf(errors.CategoryBuild, "%s already exists", path).
					WithSuggestion("Pass --force to replace the key of an existing build")
			}

			record, err := buildinfo.Generate(nil, time.Now())
			if err != nil {
				return err
			}
			if err := buildinfo.Write(out, record); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			info(cmd.OutOrStdout(), "Timestamp: %s", record.Timestamp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "dist", "Build output directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing record")

	return cmd
}
