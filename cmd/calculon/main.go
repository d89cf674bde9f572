// Command calculon is a demo host for the compiler package: it compiles
// a signature/code pair from disk, runs it against inputs given on the
// command line, and can dump the generated IR, describe a signature as
// JSON, or recompile live as the source files change.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bitly/go-simplejson"
	"github.com/urfave/cli/v2"

	"calculon/compiler"
	"calculon/internal/watch"
)

func main() {
	app := &cli.App{
		Name:                 "calculon",
		Usage:                "compile and run Calculon numerical expressions",
		Description:          "Calculon embeds a small pure-functional expression language, JIT-compiled to native code through LLVM.",
		Version:              "0.1.0",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			compileCommand(),
			dumpCommand(),
			watchCommand(),
			manCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "calculon: %v\n", err)
		os.Exit(1)
	}
}

func sigCodeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "signature", Aliases: []string{"s"}, Required: true, Usage: "path to the toplevel signature file"},
		&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Required: true, Usage: "path to the toplevel body file"},
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:  "compile",
		Usage: "compile a signature/code pair and run it against given inputs",
		Flags: append(sigCodeFlags(),
			&cli.StringSliceFlag{Name: "input", Aliases: []string{"i"}, Usage: "one input value, in declaration order (flat, vectors expanded)"},
		),
		Action: func(ctx *cli.Context) error {
			c := compiler.New()
			fn, err := compileFromPaths(c, ctx.String("signature"), ctx.String("code"))
			if err != nil {
				return err
			}
			defer fn.Close()

			inputs, err := parseFloats(ctx.StringSlice("input"))
			if err != nil {
				return err
			}

			outputs, err := fn.Call(inputs)
			if err != nil {
				return err
			}
			fmt.Println(formatFloats(outputs))
			return nil
		},
	}
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "compile a signature/code pair and print diagnostics about it",
		Flags: append(sigCodeFlags(),
			&cli.BoolFlag{Name: "ir", Usage: "print the generated LLVM IR"},
			&cli.BoolFlag{Name: "json", Usage: "print an ad hoc JSON summary instead of the IR"},
			&cli.BoolFlag{Name: "ast", Usage: "print the resolved expression tree instead of the IR"},
		),
		Action: func(ctx *cli.Context) error {
			c := compiler.New()
			fn, err := compileFromPaths(c, ctx.String("signature"), ctx.String("code"))
			if err != nil {
				return err
			}
			defer fn.Close()

			if ctx.Bool("json") {
				return dumpJSON(fn)
			}
			if ctx.Bool("ast") {
				fmt.Print(fn.DescribeAST())
				return nil
			}
			if ctx.Bool("ir") {
				fmt.Println(fn.Dump())
				return nil
			}
			described, err := fn.Describe()
			if err != nil {
				return err
			}
			fmt.Println(string(described))
			return nil
		},
	}
}

// dumpJSON builds its tree with go-simplejson rather than a marshal
// struct: this is a throwaway development view of whatever Signature
// happens to hold, not a stable wire format.
func dumpJSON(fn *compiler.Function) error {
	sig := fn.Signature()

	tree := simplejson.New()
	tree.Set("inputSize", sig.InputSize)
	tree.Set("outputSize", sig.OutputSize)

	names := func(params []compiler.Parameter) []interface{} {
		out := make([]interface{}, len(params))
		for i, p := range params {
			entry := simplejson.New()
			entry.Set("name", p.Name)
			entry.Set("type", p.Type)
			out[i] = entry
		}
		return out
	}
	tree.Set("inputs", names(sig.Inputs))
	tree.Set("outputs", names(sig.Outputs))

	encoded, err := tree.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "recompile and re-describe a signature/code pair as either file changes",
		Flags: append(sigCodeFlags(),
			&cli.StringFlag{Name: "cache", Value: ".calculon-cache.json", Usage: "path to the incremental-compile cache file"},
		),
		Action: func(ctx *cli.Context) error {
			c := compiler.New()
			sig, code, cachePath := ctx.String("signature"), ctx.String("code"), ctx.String("cache")

			return watch.Run(c, sig, code, cachePath, func(r watch.Result) {
				if r.Err != nil {
					fmt.Fprintf(os.Stderr, "calculon: recompile failed: %v\n", r.Err)
					return
				}
				defer r.Fn.Close()
				described, err := r.Fn.Describe()
				if err != nil {
					fmt.Fprintf(os.Stderr, "calculon: describe failed: %v\n", err)
					return
				}
				fmt.Println(string(described))
			})
		},
	}
}

func manCommand() *cli.Command {
	return &cli.Command{
		Name:  "man",
		Usage: "print the manual page",
		Action: func(ctx *cli.Context) error {
			text, err := ctx.App.ToMan()
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
}

func compileFromPaths(c *compiler.Compiler, sigPath, codePath string) (*compiler.Function, error) {
	sig, err := os.Open(sigPath)
	if err != nil {
		return nil, fmt.Errorf("opening signature: %w", err)
	}
	defer sig.Close()

	code, err := os.Open(codePath)
	if err != nil {
		return nil, fmt.Errorf("opening code: %w", err)
	}
	defer code.Close()

	return c.Compile(sig, code)
}

func parseFloats(raw []string) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("input %d (%q): %w", i, s, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
