package ledger

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/vigilo/internal/model"
)

// sidelogMaxSize bounds errors.log; on overflow the file is rotated once to
// errors.log.1 and restarted.
const sidelogMaxSize = 1 * 1024 * 1024

var (
	sidelogOnce sync.Once
	sidelog     *logrus.Logger
)

// Sidelog returns the process-wide error logger. Capture-path failures land
// here as JSON lines; they must never surface to the agent or crash the
// process.
func Sidelog() *logrus.Logger {
	sidelogOnce.Do(func() {
		sidelog = logrus.New()
		sidelog.SetFormatter(&logrus.JSONFormatter{})
		sidelog.SetOutput(&boundedFile{path: model.Path("errors.log")})
	})
	return sidelog
}

// boundedFile appends to a file, rotating it aside when it exceeds the cap.
type boundedFile struct {
	mu   sync.Mutex
	path string
}

func (b *boundedFile) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	os.MkdirAll(filepath.Dir(b.path), 0o700)
	if info, err := os.Stat(b.path); err == nil && info.Size() >= sidelogMaxSize {
		os.Rename(b.path, b.path+".1")
	}
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		// Last resort: the sidelog itself must not take the process down.
		return len(p), nil
	}
	defer f.Close()
	n, err := f.Write(p)
	if err != nil {
		return len(p), nil
	}
	return n, nil
}
