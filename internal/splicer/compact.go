package splicer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// member is one object entry; objects are kept as ordered member lists.
type member struct {
	key   string
	value any
}

type object []member

// Compact re-emits a JSON document without insignificant whitespace. Object
// keys keep their source order, numbers keep their literal text, and
// non-ASCII characters are written as-is rather than as \u escapes.
//
// A key repeated within one object collapses to a single member that stays
// at the key's first position and carries the last value.
func Compact(raw []byte) ([]byte, error) {
	if !utf8.Valid(raw) {
		return nil, errors.New("invalid UTF-8")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty document")
	}
	if err != nil {
		return nil, err
	}
	value, err := readValue(dec, tok)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nextToken(dec *json.Decoder) (json.Token, error) {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

// readValue builds the value starting at tok.
func readValue(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch d {
	case '{':
		var obj object
		index := make(map[string]int)
		for {
			tok, err := nextToken(dec)
			if err != nil {
				return nil, err
			}
			if tok == json.Delim('}') {
				return obj, nil
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", tok)
			}
			tok, err = nextToken(dec)
			if err != nil {
				return nil, err
			}
			value, err := readValue(dec, tok)
			if err != nil {
				return nil, err
			}
			if i, seen := index[key]; seen {
				obj[i].value = value
				continue
			}
			index[key] = len(obj)
			obj = append(obj, member{key: key, value: value})
		}
	case '[':
		arr := []any{}
		for {
			tok, err := nextToken(dec)
			if err != nil {
				return nil, err
			}
			if tok == json.Delim(']') {
				return arr, nil
			}
			value, err := readValue(dec, tok)
			if err != nil {
				return nil, err
			}
			arr = append(arr, value)
		}
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", rune(d))
	}
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch v := v.(type) {
	case object:
		buf.WriteByte('{')
		for i, m := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, m.key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, m.value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string:
		return writeString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unexpected value %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
