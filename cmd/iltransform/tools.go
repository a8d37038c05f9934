package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/panbanda/iltransform/internal/output"
	"github.com/panbanda/iltransform/pkg/classify"
	"github.com/panbanda/iltransform/pkg/disambig"
	"github.com/panbanda/iltransform/pkg/lexer"
	"github.com/panbanda/iltransform/pkg/rewrite"
	"github.com/urfave/cli/v2"
)

func subsetsCmd() *cli.Command {
	return &cli.Command{
		Name:      "subsets",
		Usage:     "Print the shortest path fragment that tells each path apart",
		ArgsUsage: "<path...>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("at least one path is required")
			}
			paths := c.Args().Slice()
			subsets := disambig.GetUniqueSubsets(paths)

			rows := make([][]string, len(paths))
			data := make([]map[string]string, len(paths))
			for i, p := range paths {
				rows[i] = []string{p, subsets[i]}
				data[i] = map[string]string{"path": p, "subset": subsets[i]}
			}
			return writeTable(c, output.NewTable("Unique Subsets", []string{"Path", "Subset"}, rows, nil, data))
		},
	}
}

func replaceCmd() *cli.Command {
	return &cli.Command{
		Name:      "replace",
		Usage:     "Replace an identifier in one line of source, honoring its context",
		ArgsUsage: "[line]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "search",
				Aliases:  []string{"s"},
				Usage:    "Identifier to replace",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "replace",
				Aliases:  []string{"r"},
				Usage:    "Replacement identifier",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "kind",
				Value: "other",
				Usage: "Identifier kind: typeuse, namespace, other",
			},
			&cli.StringFlag{
				Name:  "lang",
				Value: "il",
				Usage: "Source language: il, cs",
			},
		},
		Action: runReplaceCmd,
	}
}

func runReplaceCmd(c *cli.Context) error {
	lang, err := lexer.ParseLanguage(c.String("lang"))
	if err != nil {
		return err
	}
	kind, err := classify.ParseIdentKind(c.String("kind"))
	if err != nil {
		return err
	}

	rw := rewrite.New(lang, rewrite.WithLogger(getLogger(c)), rewrite.WithPath("<input>"))
	search, replace := c.String("search"), c.String("replace")

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	if c.Args().Len() > 0 {
		_, err := fmt.Fprintln(out, rw.ReplaceIdent(strings.Join(c.Args().Slice(), " "), search, replace, kind))
		return err
	}

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	return replaceLines(in, out, func(line string) string {
		return rw.ReplaceIdent(line, search, replace, kind)
	})
}

// replaceLines copies r to w one line at a time through fn.
func replaceLines(r io.Reader, w io.Writer, fn func(string) string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if _, err := fmt.Fprintln(w, fn(sc.Text())); err != nil {
			return err
		}
	}
	return sc.Err()
}

func sanitizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "sanitize",
		Usage:     "Turn names into valid identifiers",
		ArgsUsage: "<name...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "lang",
				Value: "cs",
				Usage: "Source language: il, cs",
			},
		},
		Action: func(c *cli.Context) error {
			lang, err := lexer.ParseLanguage(c.String("lang"))
			if err != nil {
				return err
			}
			if c.Args().Len() == 0 {
				return fmt.Errorf("at least one name is required")
			}
			names := c.Args().Slice()
			rows := make([][]string, len(names))
			data := make([]map[string]string, len(names))
			for i, name := range names {
				id := rewrite.SanitizeIdentifier(name, lang)
				rows[i] = []string{name, id}
				data[i] = map[string]string{"name": name, "identifier": id}
			}
			return writeTable(c, output.NewTable("Identifiers", []string{"Name", "Identifier"}, rows, nil, data))
		},
	}
}

// writeTable renders a table for commands that need no project config.
func writeTable(c *cli.Context, table *output.Table) error {
	format := output.ParseFormat(c.String("format"))
	if c.String("output") == "" && c.App.Writer != nil && c.App.Writer != os.Stdout {
		return output.NewWriterFormatter(format, c.App.Writer, false).Output(table)
	}
	formatter, err := output.NewFormatter(format, c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(table)
}
