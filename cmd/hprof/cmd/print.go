package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/SagenKoder/hprof-parser/internal/printer"
	"github.com/SagenKoder/hprof-parser/pkg/writer"
)

var (
	printInput  inputFlags
	printFormat string
	printOutput string
)

// printCmd represents the print command
var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Print every record of a heap dump",
	Long: `Print every record of a heap dump, one per line.

Formats:
  - text: one human-readable line per record (default)
  - json: one JSON document per record

Output goes to stdout unless --output is given; an output path ending
in .gz is gzip-compressed.`,
	RunE: runPrint,
}

func init() {
	rootCmd.AddCommand(printCmd)

	printInput.register(printCmd.Flags())
	printCmd.Flags().StringVar(&printFormat, "format", string(printer.FormatText), "Output format: text or json")
	printCmd.Flags().StringVarP(&printOutput, "output", "o", "", "Output file (default stdout)")
}

func runPrint(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	c := GetConfig()

	var out io.Writer = cmd.OutOrStdout()
	if printOutput != "" && printOutput != "-" {
		f, cerr := writer.CreateFile(printOutput, gzip.DefaultCompression)
		if cerr != nil {
			return cerr
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		out = f
	}
	buf := bufio.NewWriter(out)

	handler, err := printer.New(buf, printer.Format(printFormat))
	if err != nil {
		return err
	}

	rc, _, err := openInput(ctx, c, &printInput)
	if err != nil {
		return err
	}
	defer rc.Close()

	next, _ := withFilter(handler, &printInput)
	if _, err := newParser(c).Parse(ctx, rc, next); err != nil {
		// Records printed before the failure are still useful.
		buf.Flush()
		return fmt.Errorf("print failed: %w", err)
	}
	return buf.Flush()
}
