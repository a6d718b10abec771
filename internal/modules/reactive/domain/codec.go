package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	bytesType           = reflect.TypeFor[[]byte]()
	frameType           = reflect.TypeFor[Frame]()
)

// Encode turns an outbound value into a frame. Strings travel verbatim as text and byte slices
// as binary; everything without a natural text form is sent as JSON text.
func Encode(v any) (Frame, error) {
	switch val := v.(type) {
	case Frame:
		return val, nil
	case string:
		return Text(val), nil
	case []byte:
		return Binary(val), nil
	case encoding.TextMarshaler:
		b, err := val.MarshalText()
		if err != nil {
			return Frame{}, fmt.Errorf("encode %T: %w", v, err)
		}
		return Frame{Type: TextFrame, Data: b}, nil
	case fmt.Stringer:
		return Text(val.String()), nil
	case bool:
		return Text(strconv.FormatBool(val)), nil
	case int:
		return Text(strconv.Itoa(val)), nil
	case int64:
		return Text(strconv.FormatInt(val, 10)), nil
	case float64:
		return Text(strconv.FormatFloat(val, 'g', -1, 64)), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %T: %w", v, err)
	}
	return Frame{Type: TextFrame, Data: b}, nil
}

// Decode converts a frame payload into a value of type t.
func Decode(data []byte, t reflect.Type) (reflect.Value, error) {
	if t == frameType {
		return reflect.ValueOf(Frame{Type: TextFrame, Data: data}), nil
	}
	if t == bytesType {
		return reflect.ValueOf(append([]byte(nil), data...)), nil
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText(data); err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %s: %v", ErrDecode, t, err)
		}
		return ptr.Elem(), nil
	}

	out := reflect.New(t).Elem()
	raw := string(data)
	var err error
	switch t.Kind() {
	case reflect.String:
		out.SetString(raw)
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(raw); err == nil {
			out.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(raw, 10, t.Bits()); err == nil {
			out.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = strconv.ParseUint(raw, 10, t.Bits()); err == nil {
			out.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = strconv.ParseFloat(raw, t.Bits()); err == nil {
			out.SetFloat(f)
		}
	default:
		err = json.Unmarshal(data, out.Addr().Interface())
	}
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s: %v", ErrDecode, t, err)
	}
	return out, nil
}

// DecodeAs is the typed form of Decode.
func DecodeAs[T any](data []byte) (T, error) {
	var zero T
	v, err := Decode(data, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	out, _ := v.Interface().(T)
	return out, nil
}
