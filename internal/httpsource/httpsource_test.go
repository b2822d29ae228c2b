package httpsource

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func smallServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
		var start int
		fmt.Sscanf(rng, "bytes=%d-", &start)
		if start > len(body) {
			start = len(body)
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(body)-1, len(body)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[start:])
	}))
}

func TestOpenReadsFullSmallBody(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 4096)
	srv := smallServer(t, body)
	defer srv.Close()

	src, err := Open(srv.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.ContentLength() != int64(len(body)) {
		t.Fatalf("ContentLength = %d, want %d", src.ContentLength(), len(body))
	}

	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("content mismatch: got %d bytes, want %d bytes", len(got), len(body))
	}
}

func TestSeekStartThenRead(t *testing.T) {
	body := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 1024)
	srv := smallServer(t, body)
	defer srv.Close()

	src, err := Open(srv.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if _, err := src.Seek(8, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, 4)
	n, err := src.Read(got)
	if err != nil || n != 4 {
		t.Fatalf("Read after seek: %d, %v", n, err)
	}
	if !bytes.Equal(got, body[8:12]) {
		t.Fatalf("content at offset 8 mismatch: got %v want %v", got, body[8:12])
	}
}

