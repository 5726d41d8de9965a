// Package logfilewriter captures the output of driver processes into per-driver log files.
package logfilewriter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/uber/webdriver-bridge/src/wdbridge/internal/fs"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/serverinfofile"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	_fmtOutputKey = "output:%s"
	_logsDir      = "wdbridge"
)

// Params define the dependencies for SetupOutputWriter.
type Params struct {
	FS             fs.BridgeFS
	Lifecycle      fx.Lifecycle
	ServerInfoFile serverinfofile.ServerInfoFile
}

// SetupOutputWriter creates a writer for the output of the named driver.
// Lines are timestamped into a temporary file whose path is published in the server info file.
// The file is removed when the application stops.
func SetupOutputWriter(p Params, name string) (io.Writer, error) {
	logsDirPath := filepath.Join(os.TempDir(), _logsDir)
	if err := p.FS.MkdirAll(logsDirPath); err != nil {
		return nil, err
	}

	logFile, err := p.FS.TempFile(logsDirPath, name+"-*.log")
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf(_fmtOutputKey, name)
	if err := p.ServerInfoFile.UpdateField(key, logFile.Name()); err != nil {
		logFile.Close()
		p.FS.Remove(logFile.Name())
		return nil, err
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(logFile),
		zap.InfoLevel,
	)
	w := &loggerWriter{logger: zap.New(core).Sugar().With("driver", name)}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			w.Flush()
			w.logger.Sync()
			logFile.Close()
			p.ServerInfoFile.RemoveField(key)
			return p.FS.Remove(logFile.Name())
		},
	})

	return w, nil
}

// loggerWriter logs each complete line written to it. Several drivers may share one writer.
type loggerWriter struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	partial []byte
}

// Write implements io.Writer. A trailing line without a newline is held until the next write or Flush.
func (o *loggerWriter) Write(p []byte) (n int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	data := append(o.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		o.log(data[:i])
		data = data[i+1:]
	}
	o.partial = append([]byte(nil), data...)

	return len(p), nil
}

// Flush logs any held partial line.
func (o *loggerWriter) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.log(o.partial)
	o.partial = nil
}

func (o *loggerWriter) log(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) > 0 {
		o.logger.Info(string(line))
	}
}
