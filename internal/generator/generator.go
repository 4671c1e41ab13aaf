// Package generator runs the scan, extract, check and emit stages for one
// package.
package generator

import (
	"fmt"
	"go/ast"
	"slices"

	"go.uber.org/zap"

	"github.com/sghaida/locatorgen/internal/check"
	"github.com/sghaida/locatorgen/internal/diag"
	"github.com/sghaida/locatorgen/internal/emit"
	"github.com/sghaida/locatorgen/internal/extract"
	"github.com/sghaida/locatorgen/internal/model"
	"github.com/sghaida/locatorgen/internal/scan"
)

// Options configures a run.
type Options struct {
	Emit   emit.Options
	Logger *zap.Logger
}

// Result is the outcome of a run.
type Result struct {
	// Records are the registrations that passed every check, in source order.
	Records []model.Metadata
	// Source is the formatted file, or nil when no record survived.
	Source []byte
}

// Generate processes the registrations found in files. Diagnostics go to
// reporter and never fail the run; the returned error is an emission failure.
func Generate(host model.Host, files []*ast.File, reporter diag.Reporter, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("package", host.PackagePath()))

	extracted := extract.New(host, reporter, log).ExtractAll(scan.Sites(files))
	accepted := check.New(host, reporter, log).Check(extracted)

	log.Debug("pipeline stages done",
		zap.Int("files", len(files)),
		zap.Int("extracted", len(extracted)),
		zap.Int("accepted", len(accepted)),
	)

	if len(accepted) == 0 {
		return Result{}, nil
	}

	eopts := opts.Emit
	eopts.Reserved = append(slices.Clip(eopts.Reserved), host.ScopeNames()...)

	groups, err := emit.Emit(accepted, eopts)
	if err != nil {
		return Result{}, fmt.Errorf("generate %s: %w", host.PackagePath(), err)
	}
	src, err := emit.Render(groups, eopts)
	if err != nil {
		return Result{}, fmt.Errorf("generate %s: %w", host.PackagePath(), err)
	}

	return Result{Records: accepted, Source: src}, nil
}
