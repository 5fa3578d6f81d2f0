// Package config loads timelock deployment parameters from CUE.
//
// A deployment file is a CUE struct checked against the embedded
// #Deployment schema:
//
//	min_delay: 3600
//	proposers: ["alice"]
//	executors: ["*"]
//	admin:     "ops"
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Deployment is a validated deployment file.
type Deployment struct {
	Self      string   `json:"self"`
	MinDelay  uint64   `json:"min_delay"`
	Proposers []string `json:"proposers"`
	Executors []string `json:"executors"`
	Admin     string   `json:"admin,omitempty"`
}

// Error is a validation failure with source position.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadFile reads and validates a deployment file.
func LoadFile(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployment: %w", err)
	}
	return Load(path, data)
}

// Load validates src against the schema and decodes it. filename is used
// in error positions only.
func Load(filename string, src []byte) (*Deployment, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Deployment"))

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var d Deployment
	if err := unified.Decode(&d); err != nil {
		return nil, formatCUEError(err)
	}
	return &d, nil
}

// InitParams converts the deployment into engine initialization input.
func (d *Deployment) InitParams() engine.InitParams {
	return engine.InitParams{
		MinDelay:  d.MinDelay,
		Proposers: principals(d.Proposers),
		Executors: principals(d.Executors),
		Admin:     ir.Principal(d.Admin),
	}
}

// SelfPrincipal returns the principal the timelock acts as.
func (d *Deployment) SelfPrincipal() ir.Principal {
	if d.Self == "" {
		return engine.DefaultSelf
	}
	return ir.Principal(d.Self)
}

func principals(in []string) []ir.Principal {
	out := make([]ir.Principal, len(in))
	for i, s := range in {
		out[i] = ir.Principal(s)
	}
	return out
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Message: first.Error()}
}
