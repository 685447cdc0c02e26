// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command rpcfabc compiles .rpc interface definition files into generated Go
// packages (spec §4.f).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"code.hybscloud.com/rpcfab/idl"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("rpcfabc: failed")
		os.Exit(1)
	}
}

// NewRootCmd returns the base root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpcfabc",
		Short: "Compile .rpc interface definitions into generated Go packages",
	}
	cmd.AddCommand(GenerateCommand())
	return cmd
}

type generateOptions struct {
	outDir  string
	pkgName string
}

// GenerateCommand implements `rpcfabc generate <file.rpc>`.
func GenerateCommand() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <file.rpc>",
		Short: "Parse, type-check, and generate Go source for a .rpc file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "output directory for generated.go")
	cmd.Flags().StringVar(&opts.pkgName, "package", "", "package name for generated code (defaults to the input file's base name)")
	return cmd
}

func runGenerate(path string, opts generateOptions) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rpcfabc: reading %s: %w", path, err)
	}

	file, err := idl.Parse(string(src))
	if err != nil {
		return fmt.Errorf("rpcfabc: parsing %s: %w", path, err)
	}

	checked, err := idl.Check(file)
	if err != nil {
		return fmt.Errorf("rpcfabc: type checking %s: %w", path, err)
	}

	pkgName := opts.pkgName
	if pkgName == "" {
		base := filepath.Base(path)
		pkgName = base[:len(base)-len(filepath.Ext(base))]
	}

	out, err := idl.Generate(pkgName, checked)
	if err != nil {
		return fmt.Errorf("rpcfabc: generating code for %s: %w", path, err)
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("rpcfabc: creating %s: %w", opts.outDir, err)
	}
	outPath := filepath.Join(opts.outDir, "generated.go")
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("rpcfabc: writing %s: %w", outPath, err)
	}

	logrus.WithFields(logrus.Fields{"input": path, "output": outPath, "package": pkgName}).Info("rpcfabc: generated")
	return nil
}
