package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/vigilo/internal/model"
)

// pollInterval paces the stat fallback; fsnotify events wake the loop
// sooner when the platform delivers them.
const pollInterval = 250 * time.Millisecond

// keepaliveInterval paces SSE comment frames so idle proxies keep the
// connection open.
const keepaliveInterval = 15 * time.Second

// handleStream tails the active ledger from EOF and pushes each new whole
// line as one SSE message. On rotation (the active file's inode changes)
// the tailer re-opens the new file at offset 0. Delivery is at-least-once;
// the id is monotonic within one connection and lets clients dedup there. A
// reconnect starts a fresh tail from EOF with ids counting again from 1.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	// File-change hint. Watching the directory survives the rename+recreate
	// rotation does; a failed watcher just leaves the poll ticker.
	hints := make(chan struct{}, 1)
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		watcher.Add(filepath.Dir(s.ledgerPath))
		go func() {
			for {
				select {
				case <-r.Context().Done():
					return
				case _, ok := <-watcher.Events:
					if !ok {
						return
					}
					select {
					case hints <- struct{}{}:
					default:
					}
				case <-watcher.Errors:
				}
			}
		}()
	}

	tail := newTailer(s.ledgerPath)
	reader := s.reader()
	seq := uint64(0)

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case <-hints:
		case <-poll.C:
		}

		lines, err := tail.next()
		if err != nil {
			fmt.Fprint(w, "retry: 3000\n\n")
			flusher.Flush()
			return
		}
		for _, line := range lines {
			var ev model.Event
			if json.Unmarshal(line, &ev) != nil {
				// Torn or foreign line: only complete JSON objects go out.
				continue
			}
			reader.Decrypt(&ev)
			data, err := json.Marshal(eventToItem(&ev))
			if err != nil {
				continue
			}
			seq++
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", seq, data)
		}
		if len(lines) > 0 {
			flusher.Flush()
		}
	}
}

// tailer reads whole new lines from a growing file, following rotation by
// inode. The first next() starts at EOF so only fresh events stream.
type tailer struct {
	path    string
	pos     int64
	ino     uint64
	started bool
}

func newTailer(path string) *tailer {
	t := &tailer{path: path}
	if info, err := os.Stat(path); err == nil {
		t.pos = info.Size()
		t.ino = inodeOf(info)
		t.started = true
	}
	return t
}

func (t *tailer) next() ([][]byte, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Rotation in progress or no ledger yet; keep waiting.
			t.pos = 0
			t.started = false
			return nil, nil
		}
		return nil, err
	}

	ino := inodeOf(info)
	if t.started && ino != t.ino {
		// The active file was rotated out; the new one starts fresh.
		t.pos = 0
	}
	t.ino = ino
	t.started = true

	if info.Size() < t.pos {
		// Truncated in place (should not happen; recover anyway).
		t.pos = 0
	}
	if info.Size() == t.pos {
		return nil, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Seek(t.pos, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size()-t.pos)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	buf = buf[:n]

	// Only whole lines advance the offset; a trailing partial write stays
	// for the next round.
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		return nil, nil
	}
	t.pos += int64(end + 1)

	var lines [][]byte
	for _, line := range bytes.Split(buf[:end], []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func inodeOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
