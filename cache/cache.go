// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache persists stabilized sandpile results to a single file
// keyed by the initial configuration.
//
// File layout: a fixed header (magic, format version, keyed fingerprint
// of the encoded configuration), followed by a snappy-framed stream of
// little-endian, length-prefixed fields ending in a seahash checksum of
// the uncompressed stream. The fingerprint rejects most mismatched keys
// without decompressing; the authoritative key check is element-wise
// equality of the stored configuration.
package cache

import (
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"blainsmith.com/go/seahash"
	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/sandpile/sandpile"
	"github.com/minio/highwayhash"
	"v.io/x/lib/vlog"
)

// DefaultPath is the well-known cache location, relative to the working
// directory.
const DefaultPath = "fractaldata.cache"

const formatVersion = 1

var magic = [8]byte{'S', 'A', 'N', 'D', 'P', 'I', 'L', 'E'}

// fingerprintKey is the fixed highwayhash key. The fingerprint is a
// content ID, not a MAC, so a zero key is fine.
var fingerprintKey [32]byte

const headerSize = 8 + 8 + highwayhash.Size

// encodeConfiguration renders a configuration in the canonical form that
// is both stored in the payload and fingerprinted in the header.
func encodeConfiguration(initial []sandpile.InitialCell) []byte {
	buf := make([]byte, 8, 8+20*len(initial))
	binary.LittleEndian.PutUint64(buf, uint64(len(initial)))
	var cell [20]byte
	for _, c := range initial {
		binary.LittleEndian.PutUint64(cell[0:8], uint64(c.X))
		binary.LittleEndian.PutUint64(cell[8:16], uint64(c.Y))
		binary.LittleEndian.PutUint32(cell[16:20], c.Value)
		buf = append(buf, cell[:]...)
	}
	return buf
}

// encodePayload builds the uncompressed stream: configuration, side
// length, sand bytes, count words, totals, then a seahash of everything
// before it.
func encodePayload(result *sandpile.FractalResult, config []byte) []byte {
	n := len(config) + 8 + 8 + len(result.SandData) + 8 + 4*len(result.CountData) + 8 + 8 + 8
	buf := make([]byte, 0, n)
	var scratch [8]byte
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		buf = append(buf, scratch[:]...)
	}

	buf = append(buf, config...)
	u64(uint64(result.SideLength))
	u64(uint64(len(result.SandData)))
	buf = append(buf, result.SandData...)
	u64(uint64(len(result.CountData)))
	for _, c := range result.CountData {
		binary.LittleEndian.PutUint32(scratch[:4], c)
		buf = append(buf, scratch[:4]...)
	}
	u64(uint64(result.TotalRedistributions))
	u64(uint64(result.TotalIterations))

	h := seahash.New()
	h.Write(buf) // nolint: errcheck
	u64(h.Sum64())
	return buf
}

// Save stores result at path, replacing any previous contents. Failures
// are reported but must not abort the host: the result is already
// computed.
func Save(path string, result *sandpile.FractalResult) error {
	config := encodeConfiguration(result.InitialConfiguration)
	fingerprint := highwayhash.Sum(config, fingerprintKey[:])

	f, err := os.Create(path)
	if err != nil {
		return errors.E(err, "cache: create", path)
	}
	header := make([]byte, 0, headerSize)
	header = append(header, magic[:]...)
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], formatVersion)
	header = append(header, v[:]...)
	header = append(header, fingerprint[:]...)
	if _, err = f.Write(header); err != nil {
		f.Close() // nolint: errcheck
		return errors.E(err, "cache: write header", path)
	}

	w := snappy.NewBufferedWriter(f)
	if _, err = w.Write(encodePayload(result, config)); err != nil {
		f.Close() // nolint: errcheck
		return errors.E(err, "cache: write payload", path)
	}
	if err = w.Close(); err != nil {
		f.Close() // nolint: errcheck
		return errors.E(err, "cache: close snappy writer", path)
	}
	return f.Close()
}

// Load returns the cached result for initial, or nil on a miss. A file
// whose key does not match initial, or that fails to decode or checksum,
// is removed and treated as a miss. I/O errors are plain misses.
func Load(path string, initial []sandpile.InitialCell) *sandpile.FractalResult {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close() // nolint: errcheck

	header := make([]byte, headerSize)
	if _, err = io.ReadFull(f, header); err != nil {
		removeStale(path, "short header")
		return nil
	}
	for i := range magic {
		if header[i] != magic[i] {
			removeStale(path, "bad magic")
			return nil
		}
	}
	if v := binary.LittleEndian.Uint64(header[8:16]); v != formatVersion {
		removeStale(path, "unknown version")
		return nil
	}

	config := encodeConfiguration(initial)
	fingerprint := highwayhash.Sum(config, fingerprintKey[:])
	stored := header[16:headerSize]
	for i := range fingerprint {
		if stored[i] != fingerprint[i] {
			removeStale(path, "configuration mismatch")
			return nil
		}
	}

	payload, err := ioutil.ReadAll(snappy.NewReader(f))
	if err != nil {
		removeStale(path, "corrupt payload")
		return nil
	}
	result, ok := decodePayload(payload)
	if !ok {
		removeStale(path, "undecodable payload")
		return nil
	}
	// The fingerprint match above is probabilistic; the stored
	// configuration is the key.
	if !sandpile.ConfigsEqual(result.InitialConfiguration, initial) {
		removeStale(path, "configuration mismatch")
		return nil
	}
	return result
}

func removeStale(path, reason string) {
	vlog.Infof("cache: removing %s: %s", path, reason)
	if err := os.Remove(path); err != nil {
		vlog.Errorf("cache: remove %s: %v", path, err)
	}
}

func decodePayload(payload []byte) (*sandpile.FractalResult, bool) {
	if len(payload) < 8 {
		return nil, false
	}
	body, sum := payload[:len(payload)-8], payload[len(payload)-8:]
	h := seahash.New()
	h.Write(body) // nolint: errcheck
	if h.Sum64() != binary.LittleEndian.Uint64(sum) {
		return nil, false
	}

	d := decoder{buf: body}
	numCells := d.u64()
	if numCells > uint64(len(body))/20 {
		return nil, false
	}
	initial := make([]sandpile.InitialCell, numCells)
	for i := range initial {
		initial[i].X = int(d.u64())
		initial[i].Y = int(d.u64())
		initial[i].Value = d.u32()
	}
	side := int(d.u64())

	sandLen := d.u64()
	if sandLen > uint64(len(body)) {
		return nil, false
	}
	sand := d.bytes(int(sandLen))

	countLen := d.u64()
	if countLen > uint64(len(body))/4 {
		return nil, false
	}
	counts := make([]uint32, countLen)
	for i := range counts {
		counts[i] = d.u32()
	}

	redistributions := int64(d.u64())
	iterations := int(d.u64())

	if d.failed || len(d.buf) != 0 {
		return nil, false
	}
	if side < 0 || len(sand) != side*side || len(counts) != side*side {
		return nil, false
	}
	return &sandpile.FractalResult{
		InitialConfiguration: initial,
		SandData:             sand,
		CountData:            counts,
		SideLength:           side,
		TotalRedistributions: redistributions,
		TotalIterations:      iterations,
	}, true
}

// decoder consumes little-endian fields from the front of buf, going
// sticky-failed on underrun.
type decoder struct {
	buf    []byte
	failed bool
}

func (d *decoder) bytes(n int) []byte {
	if d.failed || n < 0 || len(d.buf) < n {
		d.failed = true
		return nil
	}
	b := append([]byte(nil), d.buf[:n]...)
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) u64() uint64 {
	if d.failed || len(d.buf) < 8 {
		d.failed = true
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return v
}

func (d *decoder) u32() uint32 {
	if d.failed || len(d.buf) < 4 {
		d.failed = true
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return v
}
