package routing

import (
	"context"
	"log/slog"
	"time"

	"pbx-control/internal/store"
	"pbx-control/pkg/logger"
)

// Compiler turns a tenant's configuration snapshot plus one lookup request
// into an instruction document for the switch.
//
// It never writes: every compilation is a read-then-render pass over Store,
// so concurrent calls need no coordination. Compile operations always return
// a usable document; a non-nil error accompanies the safe fallback document
// when the read path fails.
type Compiler struct {
	Store store.Reader

	Log      *slog.Logger
	Observer Observer
	Now      func() time.Time

	// DefaultCountryCode is applied when normalizing national caller numbers.
	DefaultCountryCode string

	// LimitBackend names the switch's admission-limit backend (e.g. "hash", "db").
	LimitBackend string
}

type Options struct {
	Logger             *slog.Logger
	Observer           Observer
	Now                func() time.Time
	DefaultCountryCode string
	LimitBackend       string
}

// Observer is notified once per compiled document.
type Observer interface {
	DocumentCompiled(section string, outcome Outcome)
}

type Outcome string

const (
	OutcomeRoute    Outcome = "route"
	OutcomeReject   Outcome = "reject"
	OutcomeFailsafe Outcome = "failsafe"
	OutcomeEmpty    Outcome = "empty"
	OutcomeUsers    Outcome = "users"
	OutcomeError    Outcome = "error"
)

// Variables set on every routed, rejected or failsafe dialplan.
const (
	VarOutcome      = "routing_outcome"
	VarRejectReason = "routing_reject_reason"
)

// maxDispatchDepth bounds destination chains through policies, time
// conditions and call flows.
const maxDispatchDepth = 8

func NewCompiler(st store.Reader, opts Options) *Compiler {
	c := &Compiler{
		Store:              st,
		Log:                opts.Logger,
		Observer:           opts.Observer,
		Now:                opts.Now,
		DefaultCountryCode: opts.DefaultCountryCode,
		LimitBackend:       opts.LimitBackend,
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	c.Log = c.Log.With("subsystem", "routing")
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.DefaultCountryCode == "" {
		c.DefaultCountryCode = "1"
	}
	if c.LimitBackend == "" {
		c.LimitBackend = "hash"
	}
	return c
}

// logger prefers the request-scoped logger carried by ctx.
func (c *Compiler) logger(ctx context.Context) *slog.Logger {
	if l, ok := logger.Lookup(ctx); ok {
		return l.With("subsystem", "routing")
	}
	return c.Log
}

func (c *Compiler) observe(section string, outcome Outcome) {
	if c.Observer != nil {
		c.Observer.DocumentCompiled(section, outcome)
	}
}
