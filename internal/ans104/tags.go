package ans104

import "fmt"

// Tag is a single (name, value) pair attached to a dataitem. Tags are an
// ordered sequence; duplicate names are legal and must survive a
// decode(encode(x)) round trip.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// encodeTags serializes tags using the Avro array encoding mandated by
// ANS-104: a zig-zag varint element count, per tag two length-prefixed byte
// strings (name, value), and a zero count terminating the array. An empty
// tag list encodes to zero bytes.
func encodeTags(tags []Tag) []byte {
	if len(tags) == 0 {
		return nil
	}
	var buf []byte
	buf = appendZigZag(buf, int64(len(tags)))
	for _, t := range tags {
		buf = appendZigZag(buf, int64(len(t.Name)))
		buf = append(buf, t.Name...)
		buf = appendZigZag(buf, int64(len(t.Value)))
		buf = append(buf, t.Value...)
	}
	buf = appendZigZag(buf, 0)
	return buf
}

// decodeTags parses an Avro tag array and checks the element count against
// the count field of the outer binary layout. Negative block counts (count
// followed by a byte size, allowed by Avro) are accepted.
func decodeTags(b []byte, want int) ([]Tag, error) {
	if len(b) == 0 {
		if want != 0 {
			return nil, fmt.Errorf("%w: tag count %d with empty tag bytes", ErrInvalidFieldLength, want)
		}
		return nil, nil
	}

	var tags []Tag
	pos := 0
	for {
		count, n, err := readZigZag(b[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if count == 0 {
			break
		}
		if count < 0 {
			count = -count
			// Block byte size, unused here.
			if _, n, err = readZigZag(b[pos:]); err != nil {
				return nil, err
			}
			pos += n
		}
		for i := int64(0); i < count; i++ {
			name, n, err := readBytes(b[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			value, n, err := readBytes(b[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			tags = append(tags, Tag{Name: string(name), Value: string(value)})
		}
	}
	if pos != len(b) {
		return nil, fmt.Errorf("%w: %d trailing tag bytes", ErrInvalidFieldLength, len(b)-pos)
	}
	if len(tags) != want {
		return nil, fmt.Errorf("%w: tag count %d does not match encoded %d", ErrInvalidFieldLength, want, len(tags))
	}
	return tags, nil
}

func readBytes(b []byte) ([]byte, int, error) {
	size, n, err := readZigZag(b)
	if err != nil {
		return nil, 0, err
	}
	if size < 0 {
		return nil, 0, fmt.Errorf("%w: negative byte-string length", ErrInvalidFieldLength)
	}
	if int64(len(b)-n) < size {
		return nil, 0, ErrTruncated
	}
	return b[n : n+int(size)], n + int(size), nil
}

// appendZigZag writes v as a zig-zag base-128 varint (Avro long encoding).
func appendZigZag(buf []byte, v int64) []byte {
	u := uint64(v<<1) ^ uint64(v>>63)
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

func readZigZag(b []byte) (int64, int, error) {
	var u uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		u |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return int64(u>>1) ^ -int64(u&1), i + 1, nil
		}
		shift += 7
		if shift > 63 {
			return 0, 0, fmt.Errorf("%w: varint overflow", ErrInvalidFieldLength)
		}
	}
	return 0, 0, ErrTruncated
}
