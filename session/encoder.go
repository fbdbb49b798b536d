package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// CurrentSchemaVersion is the leading byte of every encoded record. Decode
// rejects any other value, so a layout change only needs a new number.
const CurrentSchemaVersion uint8 = 1

var errFieldTooLong = errors.New("identity field too long")

// Encode serializes i in the current schema version.
func Encode(i *Identity) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(1 + 8 + 4*2 + len(i.ID) + len(i.Name) + len(i.Email) + len(i.Role))

	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"id", i.ID},
		{"name", i.Name},
		{"email", i.Email},
		{"role", i.Role},
	} {
		if err := writeString(&buf, field.value); err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, i.CachedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data written by Encode.
func Decode(data []byte) (*Identity, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	i := &Identity{SchemaVersion: version}

	if i.ID, err = readString(reader); err != nil {
		return nil, err
	}
	if i.Name, err = readString(reader); err != nil {
		return nil, err
	}
	if i.Email, err = readString(reader); err != nil {
		return nil, err
	}
	if i.Role, err = readString(reader); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &i.CachedAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after identity record")
	}

	return i, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errFieldTooLong
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
