package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/asakaida/schemareg/internal/catalog"
	"github.com/asakaida/schemareg/internal/handlers"
	"github.com/asakaida/schemareg/internal/logging"
	"github.com/asakaida/schemareg/internal/services/parser"
	"github.com/asakaida/schemareg/internal/services/registry"
)

const defaultAddr = "localhost:50051"

func main() {
	logging.SetGlobalLogger(logging.New(os.Stderr, "warn", "console"))
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	files   []string
	addr    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "schemactl",
		Short: "Inspect and publish schema catalogs",
		Long: `schemactl validates catalog documents against the built-in Newton catalog,
answers applicability questions locally and publishes catalogs to a running server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVarP(&opts.files, "file", "f", nil, "Catalog files installed after the built-in catalog")
	root.PersistentFlags().StringVar(&opts.addr, "addr", defaultAddr, "Server address for remote commands")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for remote commands")

	root.AddCommand(
		newValidateCmd(opts),
		newDescribeCmd(opts),
		newCanApplyCmd(opts),
		newListCmd(opts),
		newPushCmd(opts),
		newVersionsCmd(opts),
	)
	return root
}

func localRegistry(opts *options) (*registry.Registry, error) {
	extra, err := catalog.LoadFiles(opts.files...)
	if err != nil {
		return nil, err
	}
	return catalog.NewRegistry(extra...)
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate catalog files and register them next to the built-in catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogs, err := catalog.LoadFiles(append(append([]string{}, opts.files...), args...)...)
			if err != nil {
				return err
			}
			if _, err := catalog.NewRegistry(catalogs...); err != nil {
				return err
			}
			for _, c := range catalogs[len(opts.files):] {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d schemas)\n", c.Name, len(c.Schemas))
			}
			return nil
		},
	}
}

func newDescribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <schema>",
		Short: "Print the definition of a schema as DSL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := localRegistry(opts)
			if err != nil {
				return err
			}
			def, err := reg.Lookup(args[0])
			if err != nil {
				if def, err = reg.LookupAlias(args[0]); err != nil {
					return err
				}
			}
			ast, err := parser.SchemaToAST(def)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), parser.NewGenerator().Generate(&parser.CatalogAST{Schemas: []*parser.SchemaAST{ast}}))
			return nil
		},
	}
}

func newCanApplyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "can-apply <schema> <type>...",
		Short: "Report whether a schema and its prerequisites apply to prim types",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := localRegistry(opts)
			if err != nil {
				return err
			}
			for _, baseType := range args[1:] {
				ok, err := reg.CanApply(args[0], baseType)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%t\n", baseType, ok)
			}
			return nil
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := localRegistry(opts)
			if err != nil {
				return err
			}
			for _, name := range reg.Names() {
				def, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", def.Name, def.Kind, def.Applicability)
			}
			return nil
		},
	}
}

func newPushCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "push <name> <file>",
		Short: "Store a catalog file as a new version on the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dsl, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read catalog file: %w", err)
			}
			resp, err := remoteCall(cmd.Context(), opts, "WriteCatalog", map[string]interface{}{
				"name": args[0],
				"dsl":  string(dsl),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\n", args[0], resp.GetFields()["version"].GetStringValue())
			return nil
		},
	}
}

func newVersionsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "versions <name>",
		Short: "List stored versions of a catalog, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := remoteCall(cmd.Context(), opts, "ListCatalogVersions", map[string]interface{}{
				"name":  args[0],
				"limit": limit,
			})
			if err != nil {
				return err
			}
			printVersions(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of versions (0 = all)")
	return cmd
}

func printVersions(w io.Writer, resp *structpb.Struct) {
	for _, v := range resp.GetFields()["versions"].GetListValue().GetValues() {
		fields := v.GetStructValue().GetFields()
		fmt.Fprintf(w, "%s\t%s\n", fields["version"].GetStringValue(), fields["created_at"].GetStringValue())
	}
}

func remoteCall(ctx context.Context, opts *options, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.addr, err)
	}
	defer conn.Close()

	resp, err := handlers.NewClient(conn).Call(ctx, method, req)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", strings.ToLower(method), err)
	}
	return resp, nil
}
