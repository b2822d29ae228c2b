package decoder

import (
	"io"
	"log/slog"
	"os"

	"github.com/drgolem/musicengine/internal/httpsource"
)

// spooledFile bridges an HTTP source (a pull-based io.ReadSeeker) to the
// codec libraries used here, which only accept filesystem paths. A
// background goroutine copies the HTTP source into a growing temp file;
// the codec decoder reads that file as bytes become available, which is
// sufficient for sequential playback (Decoder.Seek reopens this same file
// from its start and decodes forward to the target; it does not re-spool).
type spooledFile struct {
	path   string
	file   *os.File
	source *httpsource.Source
	done   chan struct{}
}

func newSpooledFile(url string, logger *slog.Logger) (*spooledFile, error) {
	src, err := httpsource.OpenWithLogger(url, logger)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "musicengine-stream-*")
	if err != nil {
		src.Close()
		return nil, err
	}

	sp := &spooledFile{path: f.Name(), file: f, source: src, done: make(chan struct{})}
	go sp.copyLoop(logger)
	return sp, nil
}

func (sp *spooledFile) copyLoop(logger *slog.Logger) {
	defer close(sp.done)
	buf := make([]byte, 64*1024)
	for {
		n, err := sp.source.Read(buf)
		if n > 0 {
			if _, werr := sp.file.Write(buf[:n]); werr != nil {
				logger.Warn("spool write failed", "err", werr)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn("http spool read failed", "err", err)
			}
			return
		}
	}
}

func (sp *spooledFile) Close() error {
	sp.source.Close()
	err := sp.file.Close()
	os.Remove(sp.path)
	return err
}
