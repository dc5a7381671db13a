// sdmetaview — command-line front end for the sdimeta library
// Version: 0.1.0
//
// Usage:
//   sdmetaview <command> [flags] <file>
//
// Commands:
//   view     Extract and print Stable-Diffusion metadata from an image
//   formats  List the containers sdmetaview understands
//   version  Print version information
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sdimeta/sdimeta"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "formats":
		runFormats(args)
	case "version", "--version", "-v":
		fmt.Printf("sdmetaview v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`sdmetaview v%s

USAGE
  sdmetaview <command> [flags] <file>

COMMANDS
  view      Extract and print Stable-Diffusion metadata from an image
  formats   List the containers sdmetaview understands
  version   Print version information

EXAMPLES
  sdmetaview view output.png
  sdmetaview view --json output.png
  sdmetaview view --raw grid.jpeg
  sdmetaview formats

Run 'sdmetaview <command> --help' for command-specific help.
`, version)
}

// ─── view ────────────────────────────────────────────────────────────────────

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output the result as JSON")
	showRaw := fs.Bool("raw", false, "Include the raw source-keyed text map")
	fs.Usage = func() {
		fmt.Println("Usage: sdmetaview view [--json] [--raw] <file>")
		fmt.Println()
		fmt.Println("Extract Stable-Diffusion generation metadata from a PNG, JPEG, or WebP file.")
		fmt.Println()
		fmt.Println("Flags:")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	meta := sdimeta.Parse(data, filepath.Ext(path))
	printMetadata(path, meta, *jsonOut, *showRaw)
}

func printMetadata(path string, meta sdimeta.ImageMeta, jsonOut, showRaw bool) {
	if jsonOut {
		printMetadataJSON(path, meta, showRaw)
		return
	}
	printMetadataText(path, meta, showRaw)
}

func printMetadataText(path string, meta sdimeta.ImageMeta, showRaw bool) {
	fmt.Printf("File  : %s\n", path)
	fmt.Printf("Format: %s\n", meta.Format)
	if len(meta.Fields) == 0 {
		fmt.Println("(no Stable-Diffusion metadata found)")
		return
	}
	fmt.Println()

	fmt.Println("── Fields ──")
	for _, k := range sortedKeys(meta.Fields) {
		fmt.Printf("  %-20s %s\n", k+":", fieldString(meta.Fields[k]))
	}

	if showRaw && len(meta.Raw) > 0 {
		fmt.Println()
		fmt.Println("── Raw sources ──")
		for _, k := range sortedRawKeys(meta.Raw) {
			fmt.Printf("  %-20s %s\n", k+":", truncate(meta.Raw[k], 200))
		}
	}
}

func printMetadataJSON(path string, meta sdimeta.ImageMeta, showRaw bool) {
	type jsonOutput struct {
		File   string         `json:"file"`
		Format string         `json:"format"`
		Fields map[string]any `json:"fields"`
		Raw    map[string]string `json:"raw,omitempty"`
	}
	out := jsonOutput{File: path, Format: string(meta.Format), Fields: meta.Fields}
	if showRaw {
		out.Raw = meta.Raw
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func fieldString(v any) string {
	switch t := v.(type) {
	case string:
		return truncate(t, 200)
	default:
		b, _ := json.Marshal(t)
		return truncate(string(b), 200)
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRawKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ─── formats ─────────────────────────────────────────────────────────────────

func runFormats(args []string) {
	fs := flag.NewFlagSet("formats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: sdmetaview formats")
		fmt.Println()
		fmt.Println("List the containers sdmetaview understands.")
	}
	fs.Parse(args)

	rows := []struct {
		id, notes string
	}{
		{string(sdimeta.FormatPNG), "tEXt/zTXt/iTXt text chunks"},
		{string(sdimeta.FormatJPEG), "APP1 EXIF/XMP/Extended-XMP, COM comment"},
		{string(sdimeta.FormatWebP), "EXIF and XMP RIFF chunks"},
	}

	fmt.Printf("%-8s %s\n", "Format", "Sources read")
	fmt.Println(strings.Repeat("─", 50))
	for _, r := range rows {
		fmt.Printf("%-8s %s\n", r.id, r.notes)
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func printError(msg string) {
	fmt.Fprintln(os.Stderr, "✗ Error: "+msg)
}
