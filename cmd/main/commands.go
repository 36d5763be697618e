package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/CTAG07/stache/pkg/tokenstore"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

// cliEnv is the engine and optional database a one-shot command works with.
type cliEnv struct {
	config Config
	engine *Engine
	db     *sql.DB
}

// openEnv builds a metrics-free engine. The database is opened only when
// withDB is set.
func (o *rootOpts) openEnv(withDB bool) (*cliEnv, error) {
	cm, logger, err := o.setup()
	if err != nil {
		return nil, err
	}
	env := &cliEnv{config: cm.Get()}
	if withDB {
		if err = os.MkdirAll(env.config.Server.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		if env.db, err = openDB(env.config.Server.DatabasePath); err != nil {
			return nil, err
		}
	}
	if env.engine, err = newEngine(&env.config, logger, env.db, nil); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func (e *cliEnv) Close() {
	if e.engine != nil {
		e.engine.Close()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}

// snapshotStore opens the snapshot store selected by kind, "file" or "sql".
// The returned func releases it.
func (e *cliEnv) snapshotStore(kind string) (tokenstore.Store, func(), error) {
	switch kind {
	case "file":
		store, err := tokenstore.NewFileStore(e.config.Server.SnapshotDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "sql":
		if e.db == nil {
			return nil, nil, fmt.Errorf("the sql snapshot store needs the database")
		}
		store, err := tokenstore.NewSQLStore(e.db)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot store '%s', expected file or sql", kind)
	}
}

func newRenderCommand(opts *rootOpts) *cobra.Command {
	var (
		viewPath  string
		partials  []string
		snapshot  string
		storeKind string
		useDB     bool
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render a template name or literal template text to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.openEnv(useDB || storeKind == "sql")
			if err != nil {
				return err
			}
			defer env.Close()
			ctx := cmd.Context()

			if snapshot != "" {
				store, release, err := env.snapshotStore(storeKind)
				if err != nil {
					return err
				}
				defer release()
				if err = tokenstore.Seed(ctx, store, snapshot, env.engine.Mustache); err != nil {
					return err
				}
			}

			view, err := loadView(viewPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			partialMap, err := loadPartials(partials)
			if err != nil {
				return err
			}

			var p any
			if partialMap != nil {
				p = partialMap
			}
			if outPath == "" {
				return env.engine.RenderTo(ctx, cmd.OutOrStdout(), args[0], view, p)
			}
			out, err := env.engine.Render(ctx, args[0], view, p)
			if err != nil {
				return err
			}
			if err = atomic.WriteFile(outPath, strings.NewReader(out)); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&viewPath, "view", "", "JSON or YAML view file, or - for JSON on stdin")
	cmd.Flags().StringArrayVarP(&partials, "partial", "p", nil, "partial alias=file, may be repeated")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "seed the token cache from this snapshot first")
	cmd.Flags().StringVar(&storeKind, "store", "file", "snapshot store to seed from (file or sql)")
	cmd.Flags().BoolVar(&useDB, "db", false, "also resolve templates stored in the database")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newSnapshotCommand(opts *rootOpts) *cobra.Command {
	var storeKind string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, list, export and import compiled token snapshots",
	}
	cmd.PersistentFlags().StringVar(&storeKind, "store", "file", "snapshot store (file or sql)")

	// withStore runs fn against the selected store and an engine.
	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, env *cliEnv, store tokenstore.Store) error) error {
		env, err := opts.openEnv(storeKind == "sql")
		if err != nil {
			return err
		}
		defer env.Close()
		store, release, err := env.snapshotStore(storeKind)
		if err != nil {
			return err
		}
		defer release()
		return fn(cmd.Context(), env, store)
	}

	save := &cobra.Command{
		Use:   "save NAME [TEMPLATE...]",
		Short: "Compile templates and save the token cache as NAME",
		Long:  "Compile the given templates, or every resolvable template when none are given, and save the token cache as NAME.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, env *cliEnv, store tokenstore.Store) error {
				n, err := env.engine.Warm(ctx, args[1:]...)
				if err != nil {
					return err
				}
				if err = tokenstore.Persist(ctx, store, args[0], env.engine.Mustache); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved %d templates to snapshot %s\n", n, args[0])
				return err
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, env *cliEnv, store tokenstore.Store) error {
				return listSnapshots(ctx, cmd.OutOrStdout(), store)
			})
		},
	}

	export := &cobra.Command{
		Use:   "export NAME",
		Short: "Write a saved snapshot to stdout in the export format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, env *cliEnv, store tokenstore.Store) error {
				snap, err := store.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return tokenstore.Export(cmd.OutOrStdout(), snap)
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import NAME FILE",
		Short: "Save an exported snapshot file as NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, env *cliEnv, store tokenstore.Store) error {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("failed to open snapshot file: %w", err)
				}
				defer f.Close()
				snap, err := tokenstore.Import(f)
				if err != nil {
					return err
				}
				return store.Save(ctx, args[0], snap)
			})
		},
	}

	cmd.AddCommand(save, list, export, imp)
	return cmd
}

// listSnapshots prints the snapshots held by store, with template counts
// where the store keeps them.
func listSnapshots(ctx context.Context, w io.Writer, store tokenstore.Store) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch s := store.(type) {
	case *tokenstore.SQLStore:
		infos, err := s.List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "NAME\tTEMPLATES\tCREATED")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Templates, info.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	case *tokenstore.FileStore:
		names, err := s.Names()
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "NAME")
		for _, name := range names {
			fmt.Fprintln(tw, name)
		}
	default:
		return fmt.Errorf("store %T cannot be listed", store)
	}
	return tw.Flush()
}
