package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/lifecycle"
	"github.com/leeforge/pluginhub/logging"
	"github.com/leeforge/pluginhub/plugin"
)

func newImportCommand(root *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Create plugins from the YAML definitions in a directory",
		Long: `Reads every *.yaml and *.yml file in dir as a plugin definition and creates
  the plugins that do not exist yet. Existing plugins are skipped. Nothing is
  created when any definition fails to parse.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer log.Close()

			a, err := newApp(cmd.Context(), cfg, log.Logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := importDir(cmd.Context(), a.ctrl, args[0], user)
			for _, name := range report.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)
			}
			for _, name := range report.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped %s (exists)\n", name)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", lifecycle.DefaultUser, "user recorded on the create history entries")
	return cmd
}

type importReport struct {
	Created []string
	Skipped []string
}

func definitionFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// importDir parses every definition in dir first, then creates them in
// file name order.
func importDir(ctx context.Context, ctrl *lifecycle.Controller, dir, user string) (importReport, error) {
	var report importReport
	files, err := definitionFiles(dir)
	if err != nil {
		return report, err
	}
	if len(files) == 0 {
		return report, fmt.Errorf("no plugin definitions in %s", dir)
	}

	defs := make([]*plugin.Definition, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, path := range files {
		def, err := plugin.DecodeDefinitionFile(path)
		if err != nil {
			return report, fmt.Errorf("%s: %w", path, err)
		}
		if other, dup := seen[def.Name]; dup {
			return report, fmt.Errorf("%s: plugin %s is also defined in %s", path, def.Name, other)
		}
		seen[def.Name] = path
		defs = append(defs, def)
	}

	for _, def := range defs {
		manifest := def.Manifest
		_, err := ctrl.Create(ctx, lifecycle.CreateInput{
			Name:        def.Name,
			DisplayName: def.DisplayName,
			Version:     def.Version,
			Description: def.Description,
			Author:      def.Author,
			Category:    def.Category,
			Manifest:    &manifest,
		}, user)
		switch {
		case err == nil:
			report.Created = append(report.Created, def.Name)
		case apperrors.IsConflict(err):
			report.Skipped = append(report.Skipped, def.Name)
		default:
			return report, fmt.Errorf("import %s: %w", def.Name, err)
		}
	}
	return report, nil
}
