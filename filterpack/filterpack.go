// Package filterpack implements the multi-archive filter container
// (spec.md §3, §4.H): a stream of filter bodies, followed by a typed index,
// followed by a fixed-size footer.
package filterpack

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ShangDanLuXian/clp/internal/base"
)

// IndexMagic is the unterminated ASCII magic string at the start of the
// index region.
var IndexMagic = [4]byte{'C', 'L', 'P', 'I'}

// FooterMagic is the unterminated ASCII magic string at the start of the
// footer (shared with FilterFile's own magic, by design).
var FooterMagic = [4]byte{'C', 'L', 'P', 'F'}

// IndexVersion1 and FooterVersion1 are the only currently-defined versions.
const (
	IndexVersion1  = 1
	FooterVersion1 = 1
)

// footerSize is the fixed 32-byte trailer: magic(4) + version(4) +
// bodyOffset(8) + indexOffset(8) + indexSize(8).
const footerSize = 4 + 4 + 8 + 8 + 8

// maxArchiveIDLen is the limit spec.md §4.H places on manifest archive ids.
const maxArchiveIDLen = 255

// Entry describes one archive's filter file to stream into a pack.
type Entry struct {
	ArchiveID string
	Open      func() (io.ReadCloser, error)
}

// indexEntry is the in-memory form of one parsed index record.
type indexEntry struct {
	offset uint64
	size   uint32
}

// Build streams each entry's filter body into w, recording offsets and
// sizes, then appends the index and footer. The manifest must be
// non-empty and contain no archive id longer than 255 bytes. Duplicates are
// permitted; later entries for the same archive id win on lookup since the
// index map is populated in manifest order.
func Build(w io.Writer, entries []Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, errors.New("clp: filter pack manifest is empty")
	}

	var total int64
	records := make([]recordForIndex, 0, len(entries))

	for _, e := range entries {
		if len(e.ArchiveID) > maxArchiveIDLen {
			return total, errors.Newf("clp: archive id %q exceeds %d bytes", e.ArchiveID, maxArchiveIDLen)
		}
		rc, err := e.Open()
		if err != nil {
			return total, errors.Wrapf(err, "opening filter file for archive %q", e.ArchiveID)
		}
		offset := uint64(total)
		cw := &countingWriter{w: w}
		_, err = io.Copy(cw, rc)
		closeErr := rc.Close()
		total += int64(cw.n)
		if err != nil {
			return total, errors.Wrapf(err, "streaming filter file for archive %q", e.ArchiveID)
		}
		if closeErr != nil {
			return total, errors.Wrapf(closeErr, "closing filter file for archive %q", e.ArchiveID)
		}
		if cw.n > uint64(^uint32(0)) {
			return total, errors.Wrapf(base.ErrFilterTooLarge, "archive %q filter body is %d bytes", e.ArchiveID, cw.n)
		}
		records = append(records, recordForIndex{id: e.ArchiveID, offset: offset, size: uint32(cw.n)})
	}

	indexOffset := uint64(total)
	n, err := writeIndex(w, records)
	total += int64(n)
	if err != nil {
		return total, err
	}
	indexSize := uint64(total) - indexOffset

	var footer [footerSize]byte
	copy(footer[0:4], FooterMagic[:])
	binary.LittleEndian.PutUint32(footer[4:8], FooterVersion1)
	binary.LittleEndian.PutUint64(footer[8:16], 0) // body_offset is 0 in version 1
	binary.LittleEndian.PutUint64(footer[16:24], indexOffset)
	binary.LittleEndian.PutUint64(footer[24:32], indexSize)
	nf, err := w.Write(footer[:])
	total += int64(nf)
	if err != nil {
		return total, errors.Wrap(err, "writing filter pack footer")
	}
	return total, nil
}

type recordForIndex = struct {
	id     string
	offset uint64
	size   uint32
}

func writeIndex(w io.Writer, records []recordForIndex) (int64, error) {
	var total int64
	var hdr [12]byte
	copy(hdr[0:4], IndexMagic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], IndexVersion1)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(records)))
	n, err := w.Write(hdr[:])
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing filter pack index header")
	}
	for _, rec := range records {
		if len(rec.id) > maxArchiveIDLen {
			return total, errors.Newf("clp: archive id %q exceeds %d bytes", rec.id, maxArchiveIDLen)
		}
		var tail [1]byte
		tail[0] = byte(len(rec.id))
		n, err := w.Write(tail[:])
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing filter pack index entry id length")
		}
		n, err = w.Write([]byte(rec.id))
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing filter pack index entry id")
		}
		var entryTail [8 + 4]byte
		binary.LittleEndian.PutUint64(entryTail[0:8], rec.offset)
		binary.LittleEndian.PutUint32(entryTail[8:12], rec.size)
		n, err = w.Write(entryTail[:])
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing filter pack index entry tail")
		}
	}
	return total, nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

// Footer holds the parsed footer fields.
type Footer struct {
	BodyOffset  uint64
	IndexOffset uint64
	IndexSize   uint64
}

// Pack is a parsed, queryable filter pack index. It does not hold the pack
// bytes themselves; callers resolve a Lookup result against their own
// io.ReaderAt (or byte buffer) for the pack file.
type Pack struct {
	Footer  Footer
	entries map[string]indexEntry
}

// Lookup returns the (offset, size) byte range of archiveID's filter body
// within the pack. Unknown ids are treated as filter-absent (the caller
// should default to "might match").
func (p *Pack) Lookup(archiveID string) (offset uint64, size uint32, ok bool) {
	e, ok := p.entries[archiveID]
	return e.offset, e.size, ok
}

// NumEntries returns the number of archives indexed.
func (p *Pack) NumEntries() int { return len(p.entries) }

// ReadPack parses the footer (last 32 bytes) and index region of a pack
// file whose total size is packSize, read through r.
func ReadPack(r io.ReaderAt, packSize int64) (*Pack, error) {
	if packSize < footerSize {
		return nil, errors.Wrapf(base.ErrPackIndexTruncated, "pack is %d bytes, smaller than the footer", packSize)
	}
	var footerBuf [footerSize]byte
	if _, err := r.ReadAt(footerBuf[:], packSize-footerSize); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading filter pack footer"), base.ErrIOFailed)
	}
	if footerBuf[0] != FooterMagic[0] || footerBuf[1] != FooterMagic[1] ||
		footerBuf[2] != FooterMagic[2] || footerBuf[3] != FooterMagic[3] {
		return nil, errors.Wrapf(base.ErrFilterFormatInvalid, "bad pack footer magic %q", footerBuf[0:4])
	}
	version := binary.LittleEndian.Uint32(footerBuf[4:8])
	if version != FooterVersion1 {
		return nil, errors.Wrapf(base.ErrFilterFormatInvalid, "unsupported pack footer version %d", version)
	}
	footer := Footer{
		BodyOffset:  binary.LittleEndian.Uint64(footerBuf[8:16]),
		IndexOffset: binary.LittleEndian.Uint64(footerBuf[16:24]),
		IndexSize:   binary.LittleEndian.Uint64(footerBuf[24:32]),
	}

	if footer.IndexOffset+footer.IndexSize > uint64(packSize)-footerSize {
		return nil, errors.Wrapf(base.ErrPackIndexTruncated, "index region extends past footer")
	}

	indexBuf := make([]byte, footer.IndexSize)
	if footer.IndexSize > 0 {
		if _, err := r.ReadAt(indexBuf, int64(footer.IndexOffset)); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "reading filter pack index"), base.ErrIOFailed)
		}
	}

	entries, err := parseIndex(indexBuf)
	if err != nil {
		return nil, err
	}
	return &Pack{Footer: footer, entries: entries}, nil
}

func parseIndex(buf []byte) (map[string]indexEntry, error) {
	if len(buf) < 12 {
		return nil, errors.Wrapf(base.ErrPackIndexTruncated, "index region is %d bytes, smaller than its header", len(buf))
	}
	if buf[0] != IndexMagic[0] || buf[1] != IndexMagic[1] || buf[2] != IndexMagic[2] || buf[3] != IndexMagic[3] {
		return nil, errors.Wrapf(base.ErrFilterFormatInvalid, "bad pack index magic %q", buf[0:4])
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != IndexVersion1 {
		return nil, errors.Wrapf(base.ErrFilterFormatInvalid, "unsupported pack index version %d", version)
	}
	count := binary.LittleEndian.Uint32(buf[8:12])

	entries := make(map[string]indexEntry, count)
	pos := 12
	for i := uint32(0); i < count; i++ {
		if pos+1 > len(buf) {
			return nil, errors.Wrapf(base.ErrPackIndexTruncated, "index entry %d id length is truncated", i)
		}
		idLen := int(buf[pos])
		pos++
		if pos+idLen+12 > len(buf) {
			return nil, errors.Wrapf(base.ErrPackIndexTruncated, "index entry %d is truncated", i)
		}
		id := string(buf[pos : pos+idLen])
		pos += idLen
		offset := binary.LittleEndian.Uint64(buf[pos : pos+8])
		pos += 8
		size := binary.LittleEndian.Uint32(buf[pos : pos+4])
		pos += 4
		entries[id] = indexEntry{offset: offset, size: size}
	}
	return entries, nil
}
