// Package mcpserver runs vigilo's MCP tool server over stdio and captures
// every tool call into the event ledger.
package mcpserver

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/project"
	"github.com/ppiankov/vigilo/internal/session"
	"github.com/ppiankov/vigilo/internal/tools"
)

// Version reported in the MCP handshake.
const Version = "0.1.0"

// defaultTimeout bounds each tool call.
const defaultTimeout = 30 * time.Second

// Config holds MCP server configuration.
type Config struct {
	LedgerPath string
	SessionID  string
}

// Server wires the MCP SDK server to the capture pipeline: tool catalog,
// per-call timeout, project probing, encryption, and the ledger queue.
type Server struct {
	mcpServer *mcpsdk.Server
	queue     *ledger.Queue
	prober    *project.Prober
	registry  *session.Registry
	key       *crypto.Key
	cfg       Config
	tag       string
	timeout   time.Duration
	started   time.Time

	total, reads, writes, execs, errCount atomic.Uint64
}

// New creates the server, resolves tag/timeout/key, publishes the session
// artifact, and registers the fourteen catalog tools.
func New(cfg Config) (*Server, error) {
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = model.LedgerPath()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = model.NewID()
	}

	key, err := crypto.LoadConfigured()
	if err != nil {
		ledger.Sidelog().WithField("kind", model.KindCrypto).WithError(err).
			Warn("encryption key rejected, capturing plaintext")
		key = nil
	}

	s := &Server{
		queue:    ledger.NewQueue(cfg.LedgerPath),
		prober:   project.NewProber(),
		registry: session.NewRegistry(),
		key:      key,
		cfg:      cfg,
		tag:      resolveTag(),
		timeout:  resolveTimeout(),
		started:  time.Now(),
	}

	if err := s.registry.Write(cfg.SessionID); err != nil {
		ledger.Sidelog().WithField("kind", model.KindConfig).WithError(err).
			Warn("session artifact write failed, hook adoption disabled")
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: "vigilo", Version: Version},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP on stdio until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "[vigilo] session=%s\n", s.cfg.SessionID)
	fmt.Fprintf(os.Stderr, "[vigilo] ledger=%s\n", model.ShortenHome(s.cfg.LedgerPath))
	if s.tag != "" {
		fmt.Fprintf(os.Stderr, "[vigilo] tag=%s\n", s.tag)
	}
	fmt.Fprintf(os.Stderr, "[vigilo] timeout=%s\n", s.timeout)

	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close flushes the ledger queue, releases the session artifact, zeroizes
// key material, and prints the session summary.
func (s *Server) Close() {
	s.queue.Close()
	s.registry.Release()
	s.key.Zeroize()

	elapsed := int(time.Since(s.started).Seconds())
	sid := s.cfg.SessionID
	if len(sid) > 8 {
		sid = sid[:8]
	}
	fmt.Fprintf(os.Stderr,
		"[vigilo] session %s ended — %d calls  read:%d write:%d exec:%d errors:%d  %ds\n",
		sid, s.total.Load(), s.reads.Load(), s.writes.Load(), s.execs.Load(),
		s.errCount.Load(), elapsed)
}

func resolveTag() string {
	if tag := model.ConfigOrEnv("VIGILO_TAG", "TAG"); tag != "" {
		return tag
	}
	// Auto tag: current branch of the invocation directory.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return project.NewProber().Probe(ctx, "").Branch
}

func resolveTimeout() time.Duration {
	raw := model.ConfigOrEnv("VIGILO_TIMEOUT_SECS", "TIMEOUT_SECS")
	if raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultTimeout
}

// registerTools adds the fixed catalog to the MCP server. The SDK derives
// each tool's input schema from the typed handler; the risk label rides in
// the tool's meta block.
func (s *Server) registerTools() {
	register(s, "read_file", tools.ReadFile)
	register(s, "write_file", tools.WriteFile)
	register(s, "list_directory", tools.ListDirectory)
	register(s, "create_directory", tools.CreateDirectory)
	register(s, "delete_file", tools.DeleteFile)
	register(s, "move_file", tools.MoveFile)
	register(s, "search_files", tools.SearchFiles)
	register(s, "run_command", tools.RunCommand)
	register(s, "get_file_info", tools.GetFileInfo)
	register(s, "patch_file", tools.PatchFile)
	register(s, "git_status", tools.GitStatus)
	register(s, "git_diff", tools.GitDiff)
	register(s, "git_log", tools.GitLog)
	register(s, "git_commit", tools.GitCommit)
}
