package object

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir)
}

func inflateFile(t *testing.T, path string) []byte {
	t.Helper()
	compressed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("inflate %s: %v", path, err)
	}
	return raw
}

func TestStorePersistWritesCompressedFrame(t *testing.T) {
	s := tempStore(t)
	f := Encode(TypeBlob, []byte("what is up, doc?"))
	h := f.Digest()

	res, err := s.Persist(f, h)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if res.Hash != h {
		t.Errorf("Hash = %s, want %s", res.Hash, h)
	}
	wantPath := filepath.Join(s.Root(), "objects", "bd", "9dbf5aae1a3862dd1526723246b20206e5fc37")
	if res.Path != wantPath {
		t.Errorf("Path = %q, want %q", res.Path, wantPath)
	}
	if res.Reused {
		t.Error("first Persist reported Reused")
	}

	info, err := os.Stat(res.Path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if int64(res.Bytes) != info.Size() {
		t.Errorf("Bytes = %d, file size %d", res.Bytes, info.Size())
	}

	if raw := inflateFile(t, res.Path); !bytes.Equal(raw, f) {
		t.Errorf("inflated object = %q, want %q", raw, []byte(f))
	}
}

func TestStoreWriteRoundTripAllTypes(t *testing.T) {
	s := tempStore(t)
	for _, typ := range Types {
		data := []byte("content for " + typ.String())
		res, err := s.Write(typ, data)
		if err != nil {
			t.Fatalf("Write(%s): %v", typ, err)
		}
		if res.Hash != HashObject(typ, data) {
			t.Errorf("Write(%s) hash = %s, want %s", typ, res.Hash, HashObject(typ, data))
		}

		gotType, gotData, err := ParseFramed(inflateFile(t, res.Path))
		if err != nil {
			t.Fatalf("ParseFramed: %v", err)
		}
		if gotType != typ || !bytes.Equal(gotData, data) {
			t.Errorf("round trip = (%s, %q), want (%s, %q)", gotType, gotData, typ, data)
		}
	}
}

func TestStoreHas(t *testing.T) {
	s := tempStore(t)
	res, err := s.Write(TypeBlob, []byte("exists"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Has(res.Hash) {
		t.Error("Has returned false for existing object")
	}
	if s.Has(Hash("0000000000000000000000000000000000000000")) {
		t.Error("Has returned true for non-existing object")
	}
}

func TestStoreHasMalformedHash(t *testing.T) {
	s := tempStore(t)
	res, err := s.Write(TypeBlob, []byte("exists"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, h := range []Hash{"", "a", res.Hash[:2], res.Hash[:HashSize-1], res.Hash + "0", Hash(strings.ToUpper(string(res.Hash)))} {
		if s.Has(h) {
			t.Errorf("Has(%q) = true, want false", h)
		}
	}
}

func TestStoreDuplicateWrite(t *testing.T) {
	s := tempStore(t)
	data := []byte("duplicate")
	first, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	before, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	second, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if first.Hash != second.Hash || first.Path != second.Path {
		t.Errorf("second write = (%s, %s), want (%s, %s)", second.Hash, second.Path, first.Hash, first.Path)
	}
	if !second.Reused {
		t.Error("second Write should reuse the verified object")
	}
	if second.Bytes != first.Bytes {
		t.Errorf("second Bytes = %d, want %d", second.Bytes, first.Bytes)
	}

	after, err := os.ReadFile(second.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("stored bytes changed after duplicate write")
	}
}

func TestStorePersistReplacesTruncatedObject(t *testing.T) {
	s := tempStore(t)
	f := Encode(TypeBlob, []byte("survives a crash"))
	h := f.Digest()

	path := s.ObjectPath(h)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	full, err := compress(f)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := os.WriteFile(path, full[:len(full)/2], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	res, err := s.Persist(f, h)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if res.Reused {
		t.Error("truncated object should not be reused")
	}
	if raw := inflateFile(t, path); !bytes.Equal(raw, f) {
		t.Errorf("repaired object = %q, want %q", raw, []byte(f))
	}
}

func TestStorePersistDigestMismatch(t *testing.T) {
	s := tempStore(t)
	f := Encode(TypeBlob, []byte("one"))
	other := HashObject(TypeBlob, []byte("two"))

	_, err := s.Persist(f, other)
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("Persist err = %v, want ErrDigestMismatch", err)
	}
	if s.Has(other) {
		t.Error("mismatched digest should not create an object")
	}
}

func TestStorePersistMkdirFailure(t *testing.T) {
	s := tempStore(t)
	// A regular file where the objects directory should be.
	if err := os.WriteFile(filepath.Join(s.Root(), "objects"), []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := s.Write(TypeBlob, []byte("blocked"))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("Write err = %v, want *WriteError", err)
	}
	if werr.Op != "mkdir" {
		t.Errorf("WriteError.Op = %q, want %q", werr.Op, "mkdir")
	}
	if werr.Path == "" {
		t.Error("WriteError.Path is empty")
	}
}

func TestStoreSharedShardDirectory(t *testing.T) {
	s := tempStore(t)
	// Two objects landing in the same shard must both succeed.
	var first *WriteResult
	for i := 0; ; i++ {
		data := []byte{byte(i), byte(i >> 8)}
		h := HashObject(TypeBlob, data)
		if first == nil {
			res, err := s.Write(TypeBlob, data)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			first = res
			continue
		}
		if h[:2] != first.Hash[:2] || h == first.Hash {
			continue
		}
		res, err := s.Write(TypeBlob, data)
		if err != nil {
			t.Fatalf("Write into existing shard: %v", err)
		}
		if filepath.Dir(res.Path) != filepath.Dir(first.Path) {
			t.Errorf("shard dirs differ: %s vs %s", filepath.Dir(res.Path), filepath.Dir(first.Path))
		}
		return
	}
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	s := tempStore(t)
	res, err := s.Write(TypeBlob, []byte("tidy"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(res.Path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("shard dir entries = %v, want only the object", names)
	}
}

func TestStorePersistConcurrent(t *testing.T) {
	s := tempStore(t)
	f := Encode(TypeBlob, []byte("written by everyone"))
	h := f.Digest()

	const workers = 64
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Persist(f, h); err != nil {
				errs <- err
			}
			if _, err := s.Write(TypeBlob, []byte{byte(i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write: %v", err)
	}

	if raw := inflateFile(t, s.ObjectPath(h)); !bytes.Equal(raw, f) {
		t.Errorf("stored object = %q, want %q", raw, []byte(f))
	}
	for i := 0; i < workers; i++ {
		if !s.Has(HashObject(TypeBlob, []byte{byte(i)})) {
			t.Errorf("object for payload %d missing", i)
		}
	}

	err := filepath.WalkDir(filepath.Join(s.Root(), "objects"), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir: %v", err)
	}
	report, err := s.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.LooseObjects != workers+1 {
		t.Errorf("LooseObjects = %d, want %d", report.LooseObjects, workers+1)
	}
}
