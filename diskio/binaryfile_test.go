package diskio

import (
	"bytes"
	"crypto/rand"
	"path/filepath"
	"testing"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "data"), In|Out|Truncate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func Test_WriteThenReadBack(t *testing.T) {
	f := openTestFile(t)

	data := make([]byte, 4096)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand: %v", err)
	}

	if err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := f.Seek(0, Begin); err != nil {
		t.Fatalf("seek: %v", err)
	}

	got := make([]byte, len(data))
	res, err := f.Read(got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.N != len(data) || res.EOF {
		t.Fatalf("unexpected read result: %+v", res)
	}
	if !bytes.Equal(data, got) {
		t.Fatalf("round trip mismatch")
	}
}

func Test_ReadPastEndReportsEOF(t *testing.T) {
	f := openTestFile(t)
	if err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.Seek(0, Begin); err != nil {
		t.Fatalf("seek: %v", err)
	}
	buf := make([]byte, 16)
	res, err := f.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.N != 5 || !res.EOF || !res.Partial {
		t.Fatalf("expected partial EOF read of 5 bytes, got %+v", res)
	}
}

func Test_SizeTracksWrites(t *testing.T) {
	f := openTestFile(t)
	if err := f.Write(make([]byte, 123)); err != nil {
		t.Fatalf("write: %v", err)
	}
	sz, err := f.Size()
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if sz != 123 {
		t.Fatalf("expected size 123, got %d", sz)
	}
}

func Test_OperationsAfterCloseFail(t *testing.T) {
	f := openTestFile(t)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := f.Write([]byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := f.Read(make([]byte, 1)); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := f.Close(); err != ErrClosed {
		t.Fatalf("expected second close to report ErrClosed, got %v", err)
	}
}

func Test_PartialWriteLoopsToCompletion(t *testing.T) {
	// Exercises the short-write loop path with a buffer much larger than
	// a single typical OS write chunk.
	f := openTestFile(t)
	data := bytes.Repeat([]byte{0xAB}, 1<<20)
	if err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	sz, err := f.Size()
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if sz != int64(len(data)) {
		t.Fatalf("expected %d bytes written, got %d", len(data), sz)
	}
}
