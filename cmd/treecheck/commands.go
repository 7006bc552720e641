package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Farras8/cek-pohon-app/internal/assetid"
	"github.com/Farras8/cek-pohon-app/internal/logging"
	"github.com/Farras8/cek-pohon-app/internal/model"
	"github.com/Farras8/cek-pohon-app/internal/normalize"
	"github.com/Farras8/cek-pohon-app/internal/pipeline"
	"github.com/Farras8/cek-pohon-app/internal/report"
	"github.com/Farras8/cek-pohon-app/internal/store"
)

type rootFlags struct {
	logLevel string
	verbose  bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:           "treecheck",
		Short:         "Find missing tree numbers and duplicate coordinates in survey exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&rf.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "shortcut for --log-level=debug")

	root.AddCommand(newReconcileCmd(&rf), newAssetIDCmd())
	return root
}

func (rf *rootFlags) logger() zerolog.Logger {
	level := rf.logLevel
	if rf.verbose {
		level = "debug"
	}
	return logging.Configure(level, "console")
}

type reconcileOptions struct {
	export  string
	kind    string
	aliases string
	sqlite  string
	details bool
}

type reconcileOutput struct {
	model.UploadResult
	Missing    map[string]model.MissingBlock `json:"missing,omitempty"`
	Duplicates []model.DuplicateGroup        `json:"duplicates,omitempty"`
	Exported   string                        `json:"exported,omitempty"`
}

func newReconcileCmd(rf *rootFlags) *cobra.Command {
	var opts reconcileOptions
	cmd := &cobra.Command{
		Use:   "reconcile <file>",
		Short: "Run a survey file through the upload pipeline and print the result",
		Long: `Reads an xlsx, csv or HTML-table survey export, normalizes it, finds the
tree numbers missing from each block and counts duplicate coordinates.

With --sqlite the result replaces the contents of that database, the same
way an upload through the API would.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, rf, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.export, "export", "", "write an export to this path (.xlsx or .csv)")
	cmd.Flags().StringVar(&opts.kind, "kind", string(report.KindMissing), "export kind: missing or duplicates")
	cmd.Flags().StringVar(&opts.aliases, "aliases", "", "YAML file overriding the column aliases")
	cmd.Flags().StringVar(&opts.sqlite, "sqlite", "", "persist into this SQLite database instead of memory")
	cmd.Flags().BoolVar(&opts.details, "details", false, "include the missing and duplicate views")
	return cmd
}

func runReconcile(cmd *cobra.Command, rf *rootFlags, opts reconcileOptions, path string) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	aliases := normalize.DefaultAliases()
	if opts.aliases != "" {
		if aliases, err = normalize.LoadAliases(opts.aliases); err != nil {
			return err
		}
	}

	var st store.Store = store.NewMemory()
	if opts.sqlite != "" {
		sq, err := store.NewSQLite(ctx, opts.sqlite)
		if err != nil {
			return err
		}
		st = sq
	}
	defer func() { _ = st.Close() }()

	p := pipeline.New(st, normalize.New(aliases), rf.logger())
	res, err := p.Run(ctx, pipeline.Upload{Filename: filepath.Base(path), Data: data})
	if err != nil {
		return fmt.Errorf("failed to process file: %w", err)
	}

	out := reconcileOutput{UploadResult: res}
	svc := report.NewService(st)
	if opts.details {
		if out.Missing, err = svc.Missing(ctx); err != nil {
			return err
		}
		if out.Duplicates, err = svc.Duplicates(ctx); err != nil {
			return err
		}
	}
	if opts.export != "" {
		format, err := report.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.export)), "."))
		if err != nil {
			return err
		}
		kind := report.Kind(opts.kind)
		if kind != report.KindMissing && kind != report.KindDuplicates {
			return fmt.Errorf("unknown export kind %q", opts.kind)
		}
		exp, err := svc.Export(ctx, report.Request{Kind: kind, Format: format})
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.export, exp.Data, 0o644); err != nil {
			return err
		}
		out.Exported = opts.export
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newAssetIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assetid",
		Short: "Encode or decode tree asset ids",
	}

	var division, block, tree string
	encode := &cobra.Command{
		Use:   "encode",
		Short: "Build an asset id from division, block id and tree number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if division == "" || block == "" || tree == "" {
				return errors.New("--division, --block and --tree are required")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), assetid.Encode(division, block, tree))
			return err
		},
	}
	encode.Flags().StringVar(&division, "division", "", "division id, e.g. 01")
	encode.Flags().StringVar(&block, "block", "", "block id, e.g. 5")
	encode.Flags().StringVar(&tree, "tree", "", "4-digit tree number, e.g. 0012")

	decode := &cobra.Command{
		Use:   "decode <asset-id>...",
		Short: "Split asset ids into division, block code and tree number",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, a := range args {
				id, ok := assetid.Decode(a)
				if !ok {
					return fmt.Errorf("%q is not a valid asset id", a)
				}
				if err := enc.Encode(map[string]string{
					"asset_id":    a,
					"division":    id.Division,
					"block_code":  id.BlockCode,
					"tree_number": id.TreeNumber,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(encode, decode)
	return cmd
}
