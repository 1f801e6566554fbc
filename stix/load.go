// Package stix reads MITRE ATT&CK STIX 2.x bundles.
//
// The loader only checks the container shape: the document must be a JSON
// object with an "objects" array and nothing after it. Anything else is reported as
// kberr.ErrDatasetMalformed. Individual objects are decoded one by one and
// entries that do not decode are counted in Bundle.Undecodable instead of
// failing the load.
//
// Datasets may be stored plain, gzip or zstd compressed; the format is
// detected from the leading magic bytes.
//
// Usage:
//
//	bundle, err := stix.Load(ctx, stix.FileSource{Path: "enterprise-attack.json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
package stix

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/zero-day-ai/attack-kb/kberr"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Load opens src, decompresses it if needed and decodes the bundle.
func Load(ctx context.Context, src Source) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", src, err)
	}
	defer rc.Close()

	return Decode(rc, src.String())
}

// Parse decodes a bundle held in memory.
func Parse(data []byte) (*Bundle, error) {
	return Decode(bytes.NewReader(data), "memory")
}

// Decode reads a bundle from r. name identifies the dataset in errors.
func Decode(r io.Reader, name string) (*Bundle, error) {
	plain, closeFn, err := decompress(r)
	if err != nil {
		return nil, kberr.DatasetMalformed("stix.Decode", name, err)
	}
	defer closeFn()

	dec := json.NewDecoder(plain)
	var top map[string]json.RawMessage
	if err := dec.Decode(&top); err != nil {
		return nil, kberr.DatasetMalformed("stix.Decode", name, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, kberr.DatasetMalformed("stix.Decode", name, errors.New("unexpected data after bundle"))
	}

	rawObjects, ok := top["objects"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawObjects), []byte("null")) {
		return nil, kberr.DatasetMalformed("stix.Decode", name, errors.New("missing objects array"))
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawObjects, &entries); err != nil {
		return nil, kberr.DatasetMalformed("stix.Decode", name, fmt.Errorf("objects is not an array: %w", err))
	}

	bundle := &Bundle{Objects: make([]Object, 0, len(entries))}
	if rawID, ok := top["id"]; ok {
		_ = json.Unmarshal(rawID, &bundle.ID)
	}

	for _, entry := range entries {
		var obj Object
		if err := json.Unmarshal(entry, &obj); err != nil {
			bundle.Undecodable++
			continue
		}
		bundle.Objects = append(bundle.Objects, obj)
	}

	return bundle, nil
}

// decompress sniffs the stream and wraps it in a gzip or zstd reader when
// the magic bytes match. The returned close function releases the decoder.
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return br, func() {}, nil
	}
}
