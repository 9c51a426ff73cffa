package object

import (
	"bytes"
	"fmt"
	"strconv"
)

// Framed is the canonical "type len\0content" byte layout of an object. It is
// what gets hashed and, compressed, what gets stored.
type Framed []byte

// Encode builds the framed representation of data tagged with objType. The
// payload is copied verbatim. Encode panics if objType is not a valid Type.
func Encode(objType Type, data []byte) Framed {
	if !objType.Valid() {
		panic(fmt.Sprintf("object: encode with invalid %s", objType))
	}
	label := objType.String()
	length := strconv.Itoa(len(data))

	out := make([]byte, 0, len(label)+1+len(length)+1+len(data))
	out = append(out, label...)
	out = append(out, ' ')
	out = append(out, length...)
	out = append(out, 0)
	out = append(out, data...)
	return Framed(out)
}

// ParseFramed splits raw framed bytes back into type and payload. The header
// must name a known type and a canonical decimal length matching the payload.
func ParseFramed(raw []byte) (Type, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return 0, nil, fmt.Errorf("invalid format (no NUL)")
	}
	header := raw[:nulIdx]
	content := raw[nulIdx+1:]

	spIdx := bytes.IndexByte(header, ' ')
	if spIdx < 0 {
		return 0, nil, fmt.Errorf("invalid header %q", header)
	}
	objType, err := ParseType(string(header[:spIdx]))
	if err != nil {
		return 0, nil, err
	}

	lengthText := string(header[spIdx+1:])
	length, err := strconv.Atoi(lengthText)
	if err != nil || length < 0 || strconv.Itoa(length) != lengthText {
		return 0, nil, fmt.Errorf("invalid length %q", lengthText)
	}
	if len(content) != length {
		return 0, nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

// Len returns the total framed length.
func (f Framed) Len() int {
	return len(f)
}

// Header returns the "type len" prefix without the NUL terminator.
func (f Framed) Header() []byte {
	if i := bytes.IndexByte(f, 0); i >= 0 {
		return f[:i]
	}
	return f
}

// Payload returns the bytes following the NUL terminator.
func (f Framed) Payload() []byte {
	if i := bytes.IndexByte(f, 0); i >= 0 {
		return f[i+1:]
	}
	return nil
}
