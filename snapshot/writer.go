// Package snapshot exports a read-only, point-in-time copy of an
// htrie.Store to disk: an append-only dump of every live record as data
// blocks followed by a sparse index, a bloom filter, and a fixed CRC32
// footer. Blocks are in walk order, since the trie has no key order to
// preserve, and need no compaction, since the trie itself is the only
// mutable copy. This is export-only: there is no read-back path into a
// live Store.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Priyanshu23/htriekv/htrie"
)

const (
	filename             = "htrie.snap"
	defaultDataBlockSize = 4 * 1024
)

// Writer streams a Store's records to a single snapshot file as the store's
// Walk visits them. It is safe to use as the fn argument to Store.Walk.
type Writer struct {
	dir          string
	maxBlockSize int

	currBlock     recordBlock
	currBlockSize int

	file  *os.File
	index indexBlock
	bloom *bloom.BloomFilter

	recordCount int
	err         error
}

type record struct {
	key  uint64
	body []byte
}

func (r record) size() int { return 8 + 4 + len(r.body) }

type recordBlock struct {
	entries []record
}

type indexEntry struct {
	firstKey    uint64
	blockOffset int64
	blockSize   uint32
}

type indexBlock struct {
	entries []indexEntry
}

// New creates the snapshot file in dir and readies a Writer expecting
// roughly expectedRecords records, sizing the bloom filter for a 1% false
// positive rate.
func New(dir string, expectedRecords uint) (*Writer, error) {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, fmt.Errorf("snapshot: create: %w", err)
	}
	if expectedRecords == 0 {
		expectedRecords = 1
	}
	return &Writer{
		dir:          dir,
		maxBlockSize: defaultDataBlockSize,
		file:         f,
		bloom:        bloom.NewWithEstimates(expectedRecords, 0.01),
	}, nil
}

// Visit is the htrie.Store.Walk visitor: call New, then
// store.Walk(w, writer.Visit), then Flush.
func (wr *Writer) Visit(rec htrie.Record) int {
	if wr.err != nil {
		return 0
	}
	body := rec.Body
	if body == nil {
		// indirect/varlen modes hand Walk the {offset,len} pair, not the
		// body; a caller wiring Walk for export in those modes resolves
		// the payload itself before handing it to Visit (see ResolveAndVisit).
		return 0
	}

	e := record{key: rec.Key, body: body}
	if e.size()+wr.currBlockSize > wr.maxBlockSize && len(wr.currBlock.entries) > 0 {
		if err := wr.flushBlock(); err != nil {
			wr.err = err
			return 0
		}
	}
	wr.currBlock.entries = append(wr.currBlock.entries, e)
	wr.currBlockSize += e.size()

	var keyBytes [8]byte
	binary.LittleEndian.PutUint64(keyBytes[:], rec.Key)
	wr.bloom.Add(keyBytes[:])

	wr.recordCount++
	return 1
}

// ResolveAndVisit wraps Visit for indirect/varlen stores, where Walk hands
// back only {DataOff, DataLen} and the caller must resolve the payload via
// the same resolver the store itself uses internally.
func ResolveAndVisit(wr *Writer, resolve func(htrie.Record) ([]byte, error)) func(htrie.Record) int {
	return func(rec htrie.Record) int {
		body, err := resolve(rec)
		if err != nil {
			wr.err = fmt.Errorf("snapshot: resolve payload for key %d: %w", rec.Key, err)
			return 0
		}
		rec.Body = body
		return wr.Visit(rec)
	}
}

func (wr *Writer) recordIndex(blockOffset int64, blockSize uint32) {
	if len(wr.currBlock.entries) == 0 {
		return
	}
	wr.index.entries = append(wr.index.entries, indexEntry{
		firstKey:    wr.currBlock.entries[0].key,
		blockOffset: blockOffset,
		blockSize:   blockSize,
	})
}

func (wr *Writer) flushBlock() error {
	blockStart, err := wr.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := binary.Write(wr.file, binary.LittleEndian, uint32(0)); err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	mw := io.MultiWriter(wr.file, crc)
	for _, e := range wr.currBlock.entries {
		if err := binary.Write(mw, binary.LittleEndian, e.key); err != nil {
			return err
		}
		if err := binary.Write(mw, binary.LittleEndian, uint32(len(e.body))); err != nil {
			return err
		}
		if _, err := mw.Write(e.body); err != nil {
			return err
		}
	}

	payloadEnd, err := wr.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	payloadSize := uint32(payloadEnd - blockStart - 4)

	if err := binary.Write(wr.file, binary.LittleEndian, crc.Sum32()); err != nil {
		return err
	}

	finalEnd, err := wr.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := wr.file.Seek(blockStart, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(wr.file, binary.LittleEndian, payloadSize); err != nil {
		return err
	}
	if _, err := wr.file.Seek(finalEnd, io.SeekStart); err != nil {
		return err
	}

	wr.recordIndex(blockStart, payloadSize+4)
	wr.currBlock = recordBlock{}
	wr.currBlockSize = 0
	return nil
}

func (wr *Writer) writeIndexBlock() (int64, uint32, error) {
	start, err := wr.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, err
	}

	crc := crc32.NewIEEE()
	mw := io.MultiWriter(wr.file, crc)

	if err := binary.Write(mw, binary.LittleEndian, uint32(len(wr.index.entries))); err != nil {
		return 0, 0, err
	}
	for _, e := range wr.index.entries {
		if err := binary.Write(mw, binary.LittleEndian, e.firstKey); err != nil {
			return 0, 0, err
		}
		if err := binary.Write(mw, binary.LittleEndian, e.blockOffset); err != nil {
			return 0, 0, err
		}
		if err := binary.Write(mw, binary.LittleEndian, e.blockSize); err != nil {
			return 0, 0, err
		}
	}
	if err := binary.Write(wr.file, binary.LittleEndian, crc.Sum32()); err != nil {
		return 0, 0, err
	}

	end, err := wr.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, err
	}
	return start, uint32(end - start), nil
}

func (wr *Writer) writeBloomFilter() (int64, uint32, error) {
	start, err := wr.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, err
	}

	crc := crc32.NewIEEE()
	mw := io.MultiWriter(wr.file, crc)

	if err := binary.Write(mw, binary.LittleEndian, uint32(wr.bloom.K())); err != nil {
		return 0, 0, err
	}
	if err := binary.Write(mw, binary.LittleEndian, uint32(wr.bloom.Cap())); err != nil {
		return 0, 0, err
	}
	if _, err := wr.bloom.WriteTo(mw); err != nil {
		return 0, 0, err
	}
	if err := binary.Write(wr.file, binary.LittleEndian, crc.Sum32()); err != nil {
		return 0, 0, err
	}

	end, err := wr.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, err
	}
	return start, uint32(end - start), nil
}

func (wr *Writer) writeFooter(indexOffset int64, indexSize uint32, bloomOffset int64, bloomSize uint32) error {
	crc := crc32.NewIEEE()
	mw := io.MultiWriter(wr.file, crc)

	if err := binary.Write(mw, binary.LittleEndian, indexOffset); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, indexSize); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, bloomOffset); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, bloomSize); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, uint64(wr.recordCount)); err != nil {
		return err
	}
	return binary.Write(wr.file, binary.LittleEndian, crc.Sum32())
}

// Flush finalizes the snapshot file: remaining buffered records, the sparse
// index, the bloom filter, and a fixed-size footer, then closes the file.
func (wr *Writer) Flush() error {
	if wr.err != nil {
		wr.file.Close()
		return wr.err
	}
	if len(wr.currBlock.entries) > 0 {
		if err := wr.flushBlock(); err != nil {
			wr.file.Close()
			return err
		}
	}

	indexOffset, indexSize, err := wr.writeIndexBlock()
	if err != nil {
		wr.file.Close()
		return err
	}
	bloomOffset, bloomSize, err := wr.writeBloomFilter()
	if err != nil {
		wr.file.Close()
		return err
	}
	if err := wr.writeFooter(indexOffset, indexSize, bloomOffset, bloomSize); err != nil {
		wr.file.Close()
		return err
	}
	return wr.file.Close()
}
