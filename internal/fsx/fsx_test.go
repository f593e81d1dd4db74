package fsx

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingSink) Emit(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, notify.Message{Type: notify.Type(payload[0]), Body: append([]byte(nil), payload[1:]...)})
	return nil
}

func (r *recordingSink) wait(t *testing.T, typ notify.Type, min int) []notify.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		var out []notify.Message
		for _, m := range r.msgs {
			if m.Type == typ {
				out = append(out, m)
			}
		}
		r.mu.Unlock()
		if len(out) >= min {
			return out
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages of type %v", min, typ)
	return nil
}

func newTestStore(t *testing.T) (*Store, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	q := notify.NewQueue(sink)
	t.Cleanup(q.Close)
	s, err := NewStore(t.TempDir(), q, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s, sink
}

func TestCreateAndOpenRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	w, err := s.Create(model.PathRecords, "capture1.sub")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := s.Open(model.PathRecords, "capture1.sub")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}
}

func TestResolveRejectsPathEscape(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create(model.PathRecords, "../../etc/passwd"); err != ErrPathEscape {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}
}

func TestListAutoCreatesCanonicalDirAndPaginates(t *testing.T) {
	s, sink := newTestStore(t)
	for i := 0; i < 3; i++ {
		w, err := s.Create(model.PathSignals, filepath.Join("sub", "a"+string(rune('0'+i))+".sub"))
		if err != nil {
			t.Fatal(err)
		}
		w.Close()
	}
	if err := s.List(model.PathSignals, "sub"); err != nil {
		t.Fatal(err)
	}
	msgs := sink.wait(t, notify.TypeFileList, 1)
	// body: [pathLen][path][flags][totalFiles:2][count:1][entries...]
	body := msgs[len(msgs)-1].Body
	pathLen := int(body[0])
	rest := body[1+pathLen:]
	flags := rest[0]
	if flags&0x80 != 0 {
		t.Fatalf("unexpected error flag in %x", flags)
	}
	total := int(rest[1]) | int(rest[2])<<8
	if total != 3 {
		t.Fatalf("totalFiles = %d, want 3", total)
	}
}

func TestListOnMissingDirReturnsEmptyNoError(t *testing.T) {
	s, sink := newTestStore(t)
	if err := s.List(model.PathRecords, "nonexistent"); err != nil {
		t.Fatal(err)
	}
	msgs := sink.wait(t, notify.TypeFileList, 1)
	body := msgs[0].Body
	pathLen := int(body[0])
	flags := body[1+pathLen]
	if flags&0x80 != 0 {
		t.Fatalf("expected no error flag, got %x", flags)
	}
}

func TestTreeListsOnlyDirectories(t *testing.T) {
	s, sink := newTestStore(t)
	w, _ := s.Create(model.PathSignals, filepath.Join("a", "b", "file.sub"))
	w.Close()

	if err := s.Tree(model.PathSignals, ""); err != nil {
		t.Fatal(err)
	}
	msgs := sink.wait(t, notify.TypeDirectoryTree, 1)
	body := msgs[len(msgs)-1].Body
	pathLen := int(body[0])
	rest := body[1+pathLen:]
	count := int(rest[3])
	if count == 0 {
		t.Fatalf("expected at least one directory entry")
	}
}

func TestDownloadFusesHeaderAndContent(t *testing.T) {
	s, sink := newTestStore(t)
	w, _ := s.Create(model.PathPresets, "preset1.sub")
	w.Write([]byte("RAW_Data"))
	w.Close()

	if err := s.Download(model.PathPresets, "preset1.sub"); err != nil {
		t.Fatal(err)
	}
	msgs := sink.wait(t, notify.TypeFileContent, 1)
	body := msgs[0].Body
	pathLen := int(body[0])
	sizeOff := 1 + pathLen
	size := uint32(body[sizeOff]) | uint32(body[sizeOff+1])<<8 | uint32(body[sizeOff+2])<<16 | uint32(body[sizeOff+3])<<24
	if size != 8 {
		t.Fatalf("size = %d, want 8", size)
	}
	data := body[sizeOff+4:]
	if string(data) != "RAW_Data" {
		t.Fatalf("data = %q", data)
	}
}

func TestDeleteRenameMkdirCopyMove(t *testing.T) {
	s, sink := newTestStore(t)

	s.Mkdir(model.PathTemp, "newdir")
	sink.wait(t, notify.TypeFileActionResult, 1)

	w, _ := s.Create(model.PathTemp, filepath.Join("newdir", "f.txt"))
	w.Write([]byte("x"))
	w.Close()

	s.Copy(model.PathTemp, filepath.Join("newdir", "f.txt"), model.PathTemp, filepath.Join("newdir", "f2.txt"))
	sink.wait(t, notify.TypeFileActionResult, 2)

	s.Rename(model.PathTemp, filepath.Join("newdir", "f2.txt"), filepath.Join("newdir", "f3.txt"))
	sink.wait(t, notify.TypeFileActionResult, 3)

	s.Move(model.PathTemp, filepath.Join("newdir", "f3.txt"), model.PathTemp, filepath.Join("newdir", "f4.txt"))
	sink.wait(t, notify.TypeFileActionResult, 4)

	s.Delete(model.PathTemp, "newdir")
	results := sink.wait(t, notify.TypeFileActionResult, 5)
	last := results[len(results)-1]
	if last.Body[1] != 0 {
		t.Fatalf("delete status = %d, want 0", last.Body[1])
	}
}

func TestFormatRecreatesCanonicalDirs(t *testing.T) {
	s, sink := newTestStore(t)
	w, _ := s.Create(model.PathSignals, "keep.sub")
	w.Close()

	s.Format()
	sink.wait(t, notify.TypeFileActionResult, 1)

	for _, name := range canonicalDirs {
		if _, err := os.Stat(filepath.Join(s.sdRoot, name)); err != nil {
			t.Fatalf("canonical dir %s missing after format: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(s.sdRoot, "signals", "keep.sub")); !os.IsNotExist(err) {
		t.Fatalf("expected keep.sub to be wiped by format")
	}
}

func TestUploadSlotLifecycle(t *testing.T) {
	s, sink := newTestStore(t)

	header := []byte{byte(len("up.sub"))}
	header = append(header, byte(model.PathTemp))
	header = append(header, "up.sub"...)
	s.BeginUpload(5, header)
	s.AppendUpload(5, []byte("chunk-one-"))
	s.AppendUpload(5, []byte("chunk-two"))
	s.FinishUpload(5)

	sink.wait(t, notify.TypeFileActionResult, 1)

	data, err := os.ReadFile(filepath.Join(s.sdRoot, "temp", "up.sub"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "chunk-one-chunk-two" {
		t.Fatalf("data = %q", data)
	}

	s.mu.Lock()
	_, stillOpen := s.uploads[5]
	s.mu.Unlock()
	if stillOpen {
		t.Fatalf("expected upload slot to be removed after FinishUpload")
	}
}

func TestIsUploadOpcode(t *testing.T) {
	if !IsUploadOpcode(0x0D) {
		t.Fatalf("0x0D should be the upload opcode")
	}
	if IsUploadOpcode(0x09) {
		t.Fatalf("0x09 (LoadFile) should not be treated as an upload opcode")
	}
}
