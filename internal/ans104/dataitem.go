// Package ans104 implements the ANS-104 dataitem binary envelope: encoding,
// decoding, content-derived identifiers, signing and verification.
//
// The byte layout is deterministic and length-prefixed:
//
//	signature type   2 bytes LE
//	signature        fixed per signature type
//	owner            fixed per signature type
//	target           1 presence byte (+ 32 bytes)
//	anchor           1 presence byte (+ 32 bytes)
//	tag count        8 bytes LE
//	tag bytes length 8 bytes LE
//	tag bytes        Avro array
//	data             remainder
package ans104

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Supported signature types.
const (
	SignatureTypeArweave uint16 = 1 // RSA-4096 PSS over SHA-256
	SignatureTypeEd25519 uint16 = 2
)

const targetLength = 32
const anchorLength = 32

type sigParams struct {
	sigLen   int
	ownerLen int
}

var sigParamsByType = map[uint16]sigParams{
	SignatureTypeArweave: {sigLen: 512, ownerLen: 512},
	SignatureTypeEd25519: {sigLen: 64, ownerLen: 32},
}

// DataItem is a decoded ANS-104 envelope. Immutable once signed: mutating
// any field invalidates Signature and therefore ID().
type DataItem struct {
	SignatureType uint16
	Signature     []byte
	Owner         []byte
	Target        []byte // empty or 32 bytes
	Anchor        []byte // empty or 32 bytes
	Tags          []Tag
	Data          []byte
}

// ID returns the content-derived identifier: base64url (unpadded) SHA-256
// of the raw signature. A pure function of the signed byte layout.
func (d *DataItem) ID() string {
	h := sha256.Sum256(d.Signature)
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// TagValue returns the value of the first tag whose name matches
// case-insensitively, or "" when absent.
func (d *DataItem) TagValue(name string) string {
	for _, t := range d.Tags {
		if strings.EqualFold(t.Name, name) {
			return t.Value
		}
	}
	return ""
}

// ContentType returns the envelope's Content-Type tag, defaulting to
// application/octet-stream.
func (d *DataItem) ContentType() string {
	if v := d.TagValue("Content-Type"); v != "" {
		return v
	}
	return "application/octet-stream"
}

// Encode produces the canonical byte layout. It fails with
// ErrUnsupportedVersion for an unknown signature type and
// ErrInvalidFieldLength when a fixed-size field has the wrong length.
func (d *DataItem) Encode() ([]byte, error) {
	p, ok := sigParamsByType[d.SignatureType]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.SignatureType)
	}
	if len(d.Signature) != p.sigLen {
		return nil, fmt.Errorf("%w: signature is %d bytes, want %d", ErrInvalidFieldLength, len(d.Signature), p.sigLen)
	}
	if len(d.Owner) != p.ownerLen {
		return nil, fmt.Errorf("%w: owner is %d bytes, want %d", ErrInvalidFieldLength, len(d.Owner), p.ownerLen)
	}
	if len(d.Target) != 0 && len(d.Target) != targetLength {
		return nil, fmt.Errorf("%w: target is %d bytes", ErrInvalidFieldLength, len(d.Target))
	}
	if len(d.Anchor) != 0 && len(d.Anchor) != anchorLength {
		return nil, fmt.Errorf("%w: anchor is %d bytes", ErrInvalidFieldLength, len(d.Anchor))
	}

	tagBytes := encodeTags(d.Tags)

	buf := make([]byte, 0, 2+p.sigLen+p.ownerLen+2+targetLength+anchorLength+16+len(tagBytes)+len(d.Data))
	buf = binary.LittleEndian.AppendUint16(buf, d.SignatureType)
	buf = append(buf, d.Signature...)
	buf = append(buf, d.Owner...)
	buf = appendOptional(buf, d.Target)
	buf = appendOptional(buf, d.Anchor)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(d.Tags)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(tagBytes)))
	buf = append(buf, tagBytes...)
	buf = append(buf, d.Data...)
	return buf, nil
}

// Decode parses the canonical byte layout back into a DataItem. The input
// slice is copied; the result does not alias raw.
func Decode(raw []byte) (*DataItem, error) {
	r := reader{buf: raw}

	st, err := r.uint16le()
	if err != nil {
		return nil, err
	}
	p, ok := sigParamsByType[st]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, st)
	}

	d := &DataItem{SignatureType: st}
	if d.Signature, err = r.take(p.sigLen); err != nil {
		return nil, err
	}
	if d.Owner, err = r.take(p.ownerLen); err != nil {
		return nil, err
	}
	if d.Target, err = r.optional(targetLength); err != nil {
		return nil, err
	}
	if d.Anchor, err = r.optional(anchorLength); err != nil {
		return nil, err
	}

	tagCount, err := r.uint64le()
	if err != nil {
		return nil, err
	}
	tagBytesLen, err := r.uint64le()
	if err != nil {
		return nil, err
	}
	if tagCount > uint64(len(raw)) || tagBytesLen > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: tag section larger than input", ErrInvalidFieldLength)
	}
	tagBytes, err := r.take(int(tagBytesLen))
	if err != nil {
		return nil, err
	}
	if d.Tags, err = decodeTags(tagBytes, int(tagCount)); err != nil {
		return nil, err
	}

	d.Data = r.rest()
	return d, nil
}

// signaturePayload is the deep-hash message every signature covers: the
// canonical layout minus the signature itself.
func (d *DataItem) signaturePayload() []byte {
	h := deepHashChunks([][]byte{
		[]byte("dataitem"),
		[]byte("1"),
		[]byte(strconv.Itoa(int(d.SignatureType))),
		d.Owner,
		d.Target,
		d.Anchor,
		encodeTags(d.Tags),
		d.Data,
	})
	return h[:]
}

func appendOptional(buf, field []byte) []byte {
	if len(field) == 0 {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, field...)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if len(r.buf)-r.pos < n {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) optional(n int) ([]byte, error) {
	flag, err := r.take(1)
	if err != nil {
		return nil, err
	}
	switch flag[0] {
	case 0:
		return nil, nil
	case 1:
		return r.take(n)
	default:
		return nil, fmt.Errorf("%w: presence byte %d", ErrInvalidFieldLength, flag[0])
	}
}

func (r *reader) uint16le() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint64le() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// rest copies out everything after the last consumed byte.
func (r *reader) rest() []byte {
	out := make([]byte, len(r.buf)-r.pos)
	copy(out, r.buf[r.pos:])
	return out
}

