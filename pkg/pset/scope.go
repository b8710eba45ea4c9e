package pset

import (
	"bytes"
	"fmt"

	"github.com/suffix-labs/liquid-pset/pkg/elements"
)

// A scope is a sequence of key/value pairs terminated by a zero-length key:
//
//	varslice(key) || varslice(value) ... 0x00
//
// Values are never loaded unless asked for; a pair only records where its
// value starts.
type pair struct {
	key      []byte
	valueOff int64
	valueLen int64
}

// readPair reads the next pair header at c and skips its value. ok is
// false at the scope separator.
func readPair(c *elements.Cursor) (p pair, ok bool, err error) {
	keyOff := c.Pos()
	key, err := c.ReadVarSlice()
	if err != nil {
		return pair{}, false, fmt.Errorf("reading key at %d: %w", keyOff, err)
	}
	if len(key) == 0 {
		return pair{}, false, nil
	}
	n, err := c.ReadCompactSize()
	if err != nil {
		return pair{}, false, fmt.Errorf("reading value length for key %x: %w", key, err)
	}
	p = pair{key: key, valueOff: c.Pos(), valueLen: int64(n)}
	if n > uint64(c.Remaining()) {
		return pair{}, false, &elements.FormatError{
			Offset:  c.Pos(),
			Message: fmt.Sprintf("value of key %x is %d bytes, %d remaining", key, n, c.Remaining()),
		}
	}
	if err := c.Skip(p.valueLen); err != nil {
		return pair{}, false, err
	}
	return p, true, nil
}

// readValue loads the value of p.
func readValue(c *elements.Cursor, p pair) ([]byte, error) {
	if err := c.SeekTo(p.valueOff); err != nil {
		return nil, err
	}
	return c.ReadN(int(p.valueLen))
}

// skipScope advances c past the separator of the scope it is in.
func skipScope(c *elements.Cursor) error {
	for {
		_, ok, err := readPair(c)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// collect scans the scope starting at off and returns the values of the
// requested keys that are present. Duplicate keys are a format error.
func collect(c *elements.Cursor, off int64, keys ...[]byte) (map[string][]byte, error) {
	if err := c.SeekTo(off); err != nil {
		return nil, err
	}
	var found []pair
	seen := make(map[string]struct{})
	for {
		p, ok, err := readPair(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if _, dup := seen[string(p.key)]; dup {
			return nil, &elements.FormatError{Offset: p.valueOff, Message: fmt.Sprintf("duplicate key %x", p.key)}
		}
		seen[string(p.key)] = struct{}{}
		for _, k := range keys {
			if bytes.Equal(p.key, k) {
				found = append(found, p)
				break
			}
		}
	}
	values := make(map[string][]byte, len(found))
	for _, p := range found {
		v, err := readValue(c, p)
		if err != nil {
			return nil, err
		}
		values[string(p.key)] = v
	}
	return values, nil
}
