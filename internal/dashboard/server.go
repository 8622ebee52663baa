// Package dashboard serves the embedded web UI and the JSON/SSE read API on
// the loopback interface. The security boundary is the interface itself:
// no cookies, no auth, strict Host checking, conservative headers.
package dashboard

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
)

// DefaultPort is the dashboard's default listen port.
const DefaultPort = 7847

// ErrPortInUse is returned when the port is taken and no terminal is
// available to offer a fallback. The CLI maps it to exit code 3.
var ErrPortInUse = errors.New("port in use")

//go:embed static
var staticFS embed.FS

// Server is the dashboard HTTP server over one ledger.
type Server struct {
	ledgerPath string
	key        *crypto.Key
	port       int
}

// New builds a dashboard server for the resolved ledger path.
func New(ledgerPath string, port int) *Server {
	if port == 0 {
		port = DefaultPort
	}
	key, err := crypto.LoadConfigured()
	if err != nil {
		ledger.Sidelog().WithField("kind", model.KindCrypto).WithError(err).
			Warn("encryption key unavailable, dashboard shows envelopes")
		key = nil
	}
	return &Server{ledgerPath: ledgerPath, key: key, port: port}
}

// Run binds loopback and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, port, err := s.bind()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/errors", s.handleErrors)
	mux.HandleFunc("/api/events/stream", s.handleStream)

	assets, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}
	mux.Handle("/", http.FileServerFS(assets))

	srv := &http.Server{
		Handler:           s.secure(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	encrypted := "disabled"
	if s.key != nil {
		encrypted = "enabled (AES-256-GCM)"
	}
	fmt.Fprintf(os.Stderr, "[vigilo] dashboard http://127.0.0.1:%d\n", port)
	fmt.Fprintf(os.Stderr, "[vigilo] ledger=%s encryption=%s\n",
		model.ShortenHome(s.ledgerPath), encrypted)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// bind tries the configured port; when it is taken and a controlling
// terminal is present, offers an ephemeral port instead. Non-interactive
// contexts get ErrPortInUse.
func (s *Server) bind() (net.Listener, int, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, s.port, nil
	}
	if !isAddrInUse(err) {
		return nil, 0, err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, 0, fmt.Errorf("%w: port %d", ErrPortInUse, s.port)
	}

	fmt.Fprintf(os.Stderr, "[vigilo] port %d is already in use.\n", s.port)
	fmt.Fprint(os.Stderr, "[vigilo] bind to a random available port instead? [Y/n] ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "" && answer != "y" && answer != "yes" {
		return nil, 0, fmt.Errorf("%w: port %d — pass --port <N> to choose another", ErrPortInUse, s.port)
	}

	listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, err
	}
	return listener, listener.Addr().(*net.TCPAddr).Port, nil
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use")
	}
	return false
}

// secure enforces the Host check and stamps the security headers on every
// response.
func (s *Server) secure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hostname := r.Host
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			hostname = h
		}
		switch hostname {
		case "127.0.0.1", "localhost", "[::1]", "::1", "":
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; connect-src 'self'; img-src 'self' data:; font-src 'self'")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) reader() *ledger.Reader {
	return &ledger.Reader{Path: s.ledgerPath, Key: s.key}
}
