package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/rubicon-ls/rubicon"
	"github.com/rubicon-ls/rubicon/internal/docstore"
	"github.com/rubicon-ls/rubicon/internal/export"
	"github.com/rubicon-ls/rubicon/internal/resolve"
)

var (
	flagRoot    string
	flagFormat  string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "rubicon",
	Short:         "Symbol indexing and navigation for Ruby projects",
	Long:          "Rubicon indexes Ruby source with tree-sitter and answers definition, reference, search, and rename queries from the resulting symbol database.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "workspace root")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(symbolsCmd)
}

// openWorkspace builds and fully indexes a workspace for one-shot commands.
func openWorkspace(ctx context.Context) (*rubicon.Workspace, error) {
	root, err := filepath.Abs(flagRoot)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if flagVerbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}

	ws, err := rubicon.New(root, rubicon.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := ws.IndexAll(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

var flagExportDB string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the workspace and report what was found",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagExportDB, "export", "", "write a SQLite snapshot of the index to this path")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}

	names := ws.Index().Names()
	files := ws.Index().URIs()
	fmt.Fprintf(os.Stderr, "Indexed %d files, %d names in %s\n",
		len(files), len(names), time.Since(start).Round(time.Millisecond))

	if flagExportDB != "" {
		if err := export.Snapshot(ws.Index(), flagExportDB); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Snapshot: %s\n", flagExportDB)
	}
	return nil
}

var flagDumpDB string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Index the workspace and write a SQLite snapshot",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&flagDumpDB, "db", "rubicon.db", "snapshot database path")
}

func runDump(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	if err := export.Snapshot(ws.Index(), flagDumpDB); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Snapshot: %s\n", flagDumpDB)
	return nil
}

var flagExternal bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search indexed symbol names",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&flagExternal, "external", false, "include library declarations")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	return outputEntries(ws.Search(args[0], flagExternal))
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Resolve the symbol at a position to its declaration",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	u, pos, err := parseTarget(args)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	decl, err := ws.DefinitionAt(cmd.Context(), u, pos)
	if err != nil {
		return err
	}
	if decl == nil {
		fmt.Println("no declaration found")
		return nil
	}
	return outputLocations(decl.Name(), []protocol.Location{decl.Location()})
}

var flagIncludeDecl bool

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "List every occurrence of the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runReferences,
}

func init() {
	referencesCmd.Flags().BoolVar(&flagIncludeDecl, "include-declaration", true, "include the declaration itself")
}

func runReferences(cmd *cobra.Command, args []string) error {
	u, pos, err := parseTarget(args)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	locs, err := ws.ReferencesAt(cmd.Context(), u, pos, flagIncludeDecl)
	if err != nil {
		return err
	}
	return outputLocations("references", locs)
}

var flagApply bool

var renameCmd = &cobra.Command{
	Use:   "rename <file> <line> <col> <new-name>",
	Short: "Plan a rename of the symbol at a position",
	Long:  "Validates the new name, checks for conflicts, and prints the edits the rename would make. With --apply the edits are written to disk.",
	Args:  cobra.ExactArgs(4),
	RunE:  runRename,
}

func init() {
	renameCmd.Flags().BoolVar(&flagApply, "apply", false, "write the planned edits to disk")
}

func runRename(cmd *cobra.Command, args []string) error {
	u, pos, err := parseTarget(args[:3])
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	plan, err := ws.RenameAt(cmd.Context(), u, pos, args[3])
	if err != nil {
		return err
	}
	if err := outputPlan(plan); err != nil {
		return err
	}
	if flagApply {
		return applyPlan(plan)
	}
	return nil
}

// applyPlan writes a rename plan to disk: text edits first, file moves after,
// so edits land in the files they were planned against.
func applyPlan(plan *resolve.WorkspaceEdit) error {
	for u, edits := range plan.Changes {
		path := u.Filename()
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		text, err := docstore.ApplyToText(string(content), edits)
		if err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return err
		}
	}
	for _, fr := range plan.FileRenames {
		if err := os.Rename(fr.OldURI.Filename(), fr.NewURI.Filename()); err != nil {
			return err
		}
	}
	return nil
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the declarations a file contributes to the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	return outputEntries(ws.DocumentSymbols(uri.File(path)))
}

// parseTarget converts file/line/col CLI arguments (1-based) to a URI and a
// 0-based position.
func parseTarget(args []string) (uri.URI, protocol.Position, error) {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return "", protocol.Position{}, err
	}
	line, err := strconv.Atoi(args[1])
	if err != nil || line < 1 {
		return "", protocol.Position{}, fmt.Errorf("invalid line %q", args[1])
	}
	col, err := strconv.Atoi(args[2])
	if err != nil || col < 1 {
		return "", protocol.Position{}, fmt.Errorf("invalid column %q", args[2])
	}
	return uri.File(path), protocol.Position{
		Line:      uint32(line - 1),
		Character: uint32(col - 1),
	}, nil
}
