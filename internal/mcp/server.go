// Package mcp provides an MCP (Model Context Protocol) server exposing the
// nestsim programs as tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/nestsim/internal/config"
	"github.com/nvandessel/nestsim/internal/ratelimit"
	"github.com/nvandessel/nestsim/internal/store"
)

// DefaultMaxTrials caps the trials a single tool call may request.
const DefaultMaxTrials = 100000

// Server wraps the MCP SDK server and runs simulations on request.
type Server struct {
	server   *sdk.Server
	cfg      Config
	store    *store.Store
	limiters ratelimit.ToolLimiters
	audit    *AuditLogger
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "nestsim")
	Version string // Server version

	// Simulation supplies the defaults for tool inputs left unset.
	Simulation config.SimulationConfig

	// StorePath opens a run store for nestsim_runs. Empty disables it.
	StorePath string

	// Record saves every simulation tool call to the store.
	Record bool

	// AuditDir receives audit.jsonl. Empty disables the audit log.
	AuditDir string

	// MaxTrials caps requested trials. Zero means DefaultMaxTrials.
	MaxTrials int

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with nestsim tools.
func NewServer(cfg *Config) (*Server, error) {
	s := &Server{
		cfg:      *cfg,
		limiters: ratelimit.NewToolLimiters(),
		logger:   cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.cfg.MaxTrials <= 0 {
		s.cfg.MaxTrials = DefaultMaxTrials
	}

	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		s.store = st
	}
	if cfg.AuditDir != "" {
		s.audit = NewAuditLogger(cfg.AuditDir)
	}

	s.server = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)
	s.registerTools()

	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the store and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		firstErr = s.store.Close()
		s.store = nil
	}
	if err := s.audit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.audit = nil
	return firstErr
}
