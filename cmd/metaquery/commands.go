package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-meta-query/meta"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/goliatone/go-meta-query/pkg/di"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// withContainer runs fn with a freshly wired container and closes it after.
func (a *app) withContainer(fn func(ctx context.Context, c *di.Container) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		c, err := a.container()
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd.Context(), c)
	}
}

func parseID(s string) (uint64, error) {
	id, err := cast.ToUint64E(s)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (a *app) typesCmd() *cobra.Command {
	var global, names bool

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List registered object types",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&global, "global", false, "only types stored in global tables")
	cmd.Flags().BoolVar(&names, "names", false, "print names only")

	cmd.RunE = a.withContainer(func(_ context.Context, c *di.Container) error {
		m := metatype.Match{}
		if cmd.Flags().Changed("global") {
			m.Fields = map[string]string{"global": cast.ToString(global)}
		}
		if names {
			return writeJSON(cmd.OutOrStdout(), c.Registry().Names(m))
		}
		return writeJSON(cmd.OutOrStdout(), c.Registry().List(m))
	})
	return cmd
}

func (a *app) initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the meta table of every registered type",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.withContainer(func(ctx context.Context, c *di.Container) error {
		if err := c.EnsureSchema(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "initialized %d meta tables\n", len(c.Registry().Names(metatype.Match{})))
		return nil
	})
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <type> [arg=value ...]",
		Short: "Run a meta query",
		Long: `Run a meta query. Arguments use the query argument names, for example:

  metaquery query post meta_key=color number=10 paged=2
  metaquery query user object_id__in=1,2,3 orderby=object_id__in fields=ids
  metaquery query post search='blu*' count=true`,
		Args: cobra.MinimumNArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		queryArgs := make(map[string]any, len(args)-1)
		for _, pair := range args[1:] {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid argument %q, want key=value", pair)
			}
			queryArgs[key] = value
		}

		return a.withContainer(func(ctx context.Context, c *di.Container) error {
			res, err := c.Query().RunArgs(ctx, args[0], queryArgs)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		})(cmd, args)
	}
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Get a meta row by id",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return a.withContainer(func(ctx context.Context, c *di.Container) error {
			e, err := c.Store().Resolve(ctx, args[0], id)
			if err != nil {
				return notFound(err, args[0], id)
			}
			return writeJSON(cmd.OutOrStdout(), e)
		})(cmd, args)
	}
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <type> <object_id> <key> [value]",
		Short: "Add a meta row",
		Args:  cobra.RangeArgs(3, 4),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		objectID, err := parseID(args[1])
		if err != nil {
			return err
		}
		f := meta.Fields{ObjectID: objectID, Key: args[2]}
		if len(args) == 4 {
			f.Value = args[3]
		}

		return a.withContainer(func(ctx context.Context, c *di.Container) error {
			id, err := c.Store().Create(ctx, args[0], f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), meta.Entity{
				ID:         id,
				ObjectID:   f.ObjectID,
				ObjectType: args[0],
				Key:        f.Key,
				Value:      f.Value,
			})
		})(cmd, args)
	}
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var (
		objectID uint64
		key      string
		value    string
	)

	cmd := &cobra.Command{
		Use:   "update <type> <id>",
		Short: "Update a meta row; omitted fields keep their value",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().Uint64Var(&objectID, "object-id", 0, "new object id")
	cmd.Flags().StringVar(&key, "key", "", "new meta key")
	cmd.Flags().StringVar(&value, "value", "", "new meta value")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if !flags.Changed("object-id") && !flags.Changed("key") && !flags.Changed("value") {
			return errors.New("at least one of --object-id, --key or --value is required")
		}

		return a.withContainer(func(ctx context.Context, c *di.Container) error {
			e, err := c.Store().Resolve(ctx, args[0], id)
			if err != nil {
				return notFound(err, args[0], id)
			}

			f := meta.Fields{ObjectID: e.ObjectID, Key: e.Key, Value: e.Value}
			if flags.Changed("object-id") {
				f.ObjectID = objectID
			}
			if flags.Changed("key") {
				f.Key = key
			}
			if flags.Changed("value") {
				f.Value = value
			}

			if err := c.Store().Update(ctx, &e, f); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e)
		})(cmd, args)
	}
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a meta row",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return a.withContainer(func(ctx context.Context, c *di.Container) error {
			e, err := c.Store().Resolve(ctx, args[0], id)
			if err != nil {
				return notFound(err, args[0], id)
			}
			if err := c.Store().Delete(ctx, e); err != nil {
				return notFound(err, args[0], id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s meta %d\n", args[0], id)
			return nil
		})(cmd, args)
	}
	return cmd
}

func notFound(err error, objectType string, id uint64) error {
	if meta.IsNotFound(err) {
		return fmt.Errorf("%s meta %d not found", objectType, id)
	}
	return err
}
