package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/resolve"
)

func validateFormat(format string) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format %q: must be json or text", format)
	}
	return nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type entryOut struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URI  string `json:"uri"`
	Line uint32 `json:"line"`
	Col  uint32 `json:"col"`
}

func outputEntries(entries []entry.Entry) error {
	if flagFormat == "json" {
		out := make([]entryOut, 0, len(entries))
		for _, e := range entries {
			loc := e.Location()
			out = append(out, entryOut{
				Name: e.Name(),
				Kind: kindLabel(e),
				URI:  string(e.URI()),
				Line: loc.Range.Start.Line + 1,
				Col:  loc.Range.Start.Character + 1,
			})
		}
		return outputJSON(out)
	}
	for _, e := range entries {
		loc := e.Location()
		fmt.Printf("%s\t%s\t%s:%d:%d\n", e.Name(), kindLabel(e),
			e.URI().Filename(), loc.Range.Start.Line+1, loc.Range.Start.Character+1)
	}
	return nil
}

func kindLabel(e entry.Entry) string {
	switch v := e.(type) {
	case *entry.Namespace:
		return string(v.Kind)
	case *entry.Method:
		return string(v.Kind) + " method"
	case *entry.Constant:
		return "constant"
	}
	return "unknown"
}

type locationOut struct {
	URI       string `json:"uri"`
	StartLine uint32 `json:"start_line"`
	StartCol  uint32 `json:"start_col"`
	EndLine   uint32 `json:"end_line"`
	EndCol    uint32 `json:"end_col"`
}

func outputLocations(label string, locs []protocol.Location) error {
	if flagFormat == "json" {
		out := make([]locationOut, 0, len(locs))
		for _, loc := range locs {
			out = append(out, locationOut{
				URI:       string(loc.URI),
				StartLine: loc.Range.Start.Line + 1,
				StartCol:  loc.Range.Start.Character + 1,
				EndLine:   loc.Range.End.Line + 1,
				EndCol:    loc.Range.End.Character + 1,
			})
		}
		return outputJSON(map[string]any{label: out})
	}
	for _, loc := range locs {
		fmt.Printf("%s:%d:%d\n", loc.URI.Filename(),
			loc.Range.Start.Line+1, loc.Range.Start.Character+1)
	}
	return nil
}

func outputPlan(plan *resolve.WorkspaceEdit) error {
	if flagFormat == "json" {
		return outputJSON(plan)
	}
	uris := make([]uri.URI, 0, len(plan.Changes))
	for u := range plan.Changes {
		uris = append(uris, u)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })
	for _, u := range uris {
		for _, e := range plan.Changes[u] {
			fmt.Printf("%s:%d:%d-%d:%d -> %q\n", u.Filename(),
				e.Range.Start.Line+1, e.Range.Start.Character+1,
				e.Range.End.Line+1, e.Range.End.Character+1, e.NewText)
		}
	}
	for _, fr := range plan.FileRenames {
		fmt.Printf("rename file %s -> %s\n", fr.OldURI.Filename(), fr.NewURI.Filename())
	}
	return nil
}
