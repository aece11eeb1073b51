// Command bscls is a thin CLI harness exercising the Program API, per
// SPEC_FULL.md's AMBIENT STACK ("the CLI is a thin demonstration
// harness ... that exercises the Program API, nothing more"). It is
// grounded on cmd/cue/cmd's cobra-based root command and its
// golang.org/x/text/message positional-argument diagnostic printer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/message"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/parser"
	"github.com/scriptcore/bsc/program"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var sourceMap bool
	var yamlOut bool

	root := &cobra.Command{
		Use:   "bscls",
		Short: "compiler/language-service engine for the classic/extended scripting dialect",
	}
	root.PersistentFlags().BoolVar(&sourceMap, "source-map", false, "emit source maps when transpiling")
	root.PersistentFlags().BoolVar(&yamlOut, "yaml", false, "render diagnostics as YAML instead of text")

	root.AddCommand(
		newBuildCmd(&sourceMap, &yamlOut),
		newValidateCmd(&yamlOut),
		newTranspileCmd(&sourceMap),
		newLspCmd(),
	)
	return root
}

func newProgramFromArgs(sourceMap bool, paths []string) (*program.Program, error) {
	p := program.New(program.Options{RootDir: ".", SourceMap: sourceMap})
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		mode := parser.Extended
		ext := ".bs"
		if len(path) > 4 && path[len(path)-4:] == ".brs" {
			mode = parser.Classic
			ext = ".brs"
		}
		p.AddOrReplaceFile("global", path, path, ext, content, mode)
	}
	return p, nil
}

func newBuildCmd(sourceMap, yamlOut *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "build [files...]",
		Short: "parse and validate the given files, printing diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProgramFromArgs(*sourceMap, args)
			if err != nil {
				return err
			}
			return printDiagnostics(cmd, p.Validate(), *yamlOut)
		},
	}
}

func newValidateCmd(yamlOut *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files...]",
		Short: "validate the given files without transpiling",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProgramFromArgs(false, args)
			if err != nil {
				return err
			}
			return printDiagnostics(cmd, p.Validate(), *yamlOut)
		},
	}
}

func newTranspileCmd(sourceMap *bool) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "transpile [files...]",
		Short: "lower extended-dialect files to classic surface text",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProgramFromArgs(*sourceMap, args)
			if err != nil {
				return err
			}
			p.Validate()
			for _, res := range p.Transpile(args) {
				dest := res.PkgPath
				if outDir != "" {
					dest = outDir + "/" + res.PkgPath
				}
				if err := os.WriteFile(dest, []byte(res.Code), 0o644); err != nil {
					return err
				}
				if res.Map != nil {
					mapBytes, err := res.Map.Marshal()
					if err != nil {
						return err
					}
					if err := os.WriteFile(dest+".map", mapBytes, 0o644); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory to write lowered files into")
	return cmd
}

func newLspCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "run a stdio language server over the Program API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveLSP(cmd.Context())
		},
	}
}

// printDiagnostics renders diagnostics either as YAML (gopkg.in/yaml.v3,
// per SPEC_FULL.md's AMBIENT STACK) or as positional-argument message
// text via golang.org/x/text/message, mirroring cmd/cue/cmd's printer.
func printDiagnostics(cmd *cobra.Command, diags []diag.Diagnostic, yamlOut bool) error {
	if yamlOut {
		out, err := yaml.Marshal(diagsToYAML(diags))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	p := message.NewPrinter(language.English)
	for _, d := range diags {
		p.Fprintf(cmd.OutOrStdout(), "%s:%s: %s: %s (code %[5]d)\n",
			d.File, d.Range.Start, d.Severity, d.Message, int(d.Code))
	}
	return nil
}

type yamlDiagnostic struct {
	Code     int    `yaml:"code"`
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	File     string `yaml:"file"`
}

func diagsToYAML(diags []diag.Diagnostic) []yamlDiagnostic {
	out := make([]yamlDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = yamlDiagnostic{Code: int(d.Code), Severity: d.Severity.String(), Message: d.Message, File: d.File}
	}
	return out
}
