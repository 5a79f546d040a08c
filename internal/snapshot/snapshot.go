// Package snapshot serializes ledger state for export and import. A snapshot
// is a short header followed by an LZ4 frame holding the msgpack-encoded
// state.
package snapshot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4"
	"github.com/ugorji/go/codec"

	"github.com/LeJamon/swapx/internal/core/ledger"
)

var magic = []byte("SWAPXS\x00\x01")

// ErrBadHeader is returned when the input is not a snapshot.
var ErrBadHeader = errors.New("not a ledger snapshot")

var handle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.Canonical = true
	return h
}()

// Write encodes s to w.
func Write(w io.Writer, s ledger.State) error {
	if _, err := w.Write(magic); err != nil {
		return err
	}
	zw := lz4.NewWriter(w)
	if err := codec.NewEncoder(zw, handle).Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return zw.Close()
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (ledger.State, error) {
	var s ledger.State
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if !bytes.Equal(header, magic) {
		return s, ErrBadHeader
	}
	if err := codec.NewDecoder(lz4.NewReader(r), handle).Decode(&s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Save writes s to path, replacing the file only once it is complete.
func Save(path string, s ledger.State) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, s); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the snapshot at path.
func Load(path string) (ledger.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.State{}, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}
