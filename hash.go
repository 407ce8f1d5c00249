package plugraph

import (
	"bytes"
	"crypto/sha1"
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"reflect"
	"sort"
)

// Hash is a fixed-size digest summarising everything a plug's value depends on.
// Two evaluations of the same plug producing equal hashes are guaranteed to
// produce equal values, so a Hash is safe to use as a cache key.
//
// Hashes are stable within a process. Nothing guarantees their stability across
// builds or processes, hence they should never be persisted.
type Hash [sha1.Size]byte

func (h Hash) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(text, h[:]) // always returns hex.EncodedLen(len(h)) (see hex.Encode)
	return text, nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	n, err := hex.Decode(h[:], text)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if n != len(h) { // always n <= len(h[:]) (see hex.Decode)
		return fmt.Errorf("not enough bytes: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero value of the type.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ContentAddresser is the interface implemented by values that provide their own
// representation for hashing. A type that implements ContentAddresser has
// complete control over the bytes fed to the digest and may therefore contain
// things such as unexported fields, channels, and functions, which are not
// otherwise hashable.
type ContentAddresser interface {
	ContentAddress(h hash.Hash) error
}

// ValueHash returns the Hash of an arbitrary plug value.
//
// If v implements ContentAddresser, then the hash is computed using its
// ContentAddress method; otherwise, the hash is computed using a
// reflection-based algorithm that walks v structurally: struct fields are
// visited in name order (so reordering fields does not change the hash), map
// entries are visited in key order, and interfaces are hashed together with
// their dynamic type.
//
// The type of v always takes part in the hash, so the int 1 and the float64 1
// never share a Hash.
func ValueHash(v any) (Hash, error) {
	h := sha1.New()
	if err := writeValue(h, reflect.ValueOf(v)); err != nil {
		return Hash{}, err
	}
	return Hash(h.Sum(nil)), nil
}

// MustValueHash is like ValueHash but panics if v cannot be hashed.
func MustValueHash(v any) Hash {
	h, err := ValueHash(v)
	if err != nil {
		panic("plugraph: un-hashable value: " + err.Error())
	}
	return h
}

var contentAddresserType = reflect.TypeFor[ContentAddresser]()

// writeValue feeds the type and structural contents of v to the digest.
func writeValue(digest hash.Hash, v reflect.Value) error {
	if !v.IsValid() {
		// an untyped nil carries no type; it hashes as a fixed marker instead.
		digest.Write([]byte("<nil>"))
		return nil
	}
	// hash should be different if the type changes its name or moves between
	// packages.
	t := v.Type()
	writeString(digest, t.PkgPath())
	writeString(digest, t.String())
	return writeContents(digest, v)
}

func writeContents(digest hash.Hash, v reflect.Value) error {
	// look for a ContentAddresser implementation
	if v.Type().Implements(contentAddresserType) && v.CanInterface() {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			digest.Write([]byte{0})
			return nil
		}
		if err := v.Interface().(ContentAddresser).ContentAddress(digest); err != nil {
			return fmt.Errorf("content-addresser %s: %w", v.Type(), err)
		}
		return nil
	}

	// fast-path for types that implement encoding.BinaryMarshaler; interfaces and
	// pointers are unpacked first (see below).
	if k := v.Kind(); k != reflect.Interface && k != reflect.Pointer {
		if x, ok := v.Interface().(encoding.BinaryMarshaler); ok {
			b, err := x.MarshalBinary()
			if err != nil {
				return fmt.Errorf("binary %s: %w", v.Type(), err)
			}
			writeBytes(digest, b)
			return nil
		}
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			digest.Write([]byte{0})
			return nil
		}
		// unlike the static type, the dynamic type of an interface value is part of
		// its contents.
		digest.Write([]byte{1})
		return writeValue(digest, v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			digest.Write([]byte{0})
			return nil
		}
		digest.Write([]byte{1})
		return writeContents(digest, v.Elem())
	case reflect.Struct:
		fields := reflect.VisibleFields(v.Type())
		// sort fields by name to ensure a stable hash, regardless of the order in which
		// fields are defined in the struct.
		sort.Slice(fields, func(i, j int) bool {
			return fields[i].Name < fields[j].Name
		})
		for _, field := range fields {
			if !field.IsExported() || field.Anonymous {
				continue
			}
			writeString(digest, field.Name)
			if err := writeContents(digest, v.FieldByIndex(field.Index)); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
		}
	case reflect.String:
		writeString(digest, v.String())
	case reflect.Int:
		// int is variable-size based on the architecture it is compiled for,
		// so to be consistent across architectures we convert to int64
		buf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutVarint(buf, v.Int())
		digest.Write(buf[:n])
	case reflect.Uint, reflect.Uintptr:
		buf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(buf, v.Uint())
		digest.Write(buf[:n])
	case reflect.Bool, reflect.Float32, reflect.Float64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Complex64, reflect.Complex128:
		// binary package handles fixed-size signed/unsigned integers, floats and booleans
		if err := binary.Write(digest, binary.BigEndian, v.Interface()); err != nil {
			return fmt.Errorf("%s: %w", v.Type(), err)
		}
	case reflect.Slice:
		if v.IsNil() {
			digest.Write([]byte{0})
			return nil
		}
		digest.Write([]byte{1})
		fallthrough
	case reflect.Array:
		writeLength(digest, v.Len())
		// fast-path for fixed-size numeric elements
		switch v.Type().Elem().Kind() {
		case reflect.Uint8, reflect.Float32, reflect.Float64, reflect.Bool,
			reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if err := binary.Write(digest, binary.BigEndian, v.Interface()); err != nil {
				return fmt.Errorf("%s: %w", v.Type(), err)
			}
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := writeContents(digest, v.Index(i)); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	case reflect.Map:
		if v.IsNil() {
			digest.Write([]byte{0})
			return nil
		}
		digest.Write([]byte{1})
		writeLength(digest, v.Len())
		// map iteration order is random; entries are hashed in the order of their
		// hashed keys instead.
		type entry struct {
			key   Hash
			value reflect.Value
		}
		entries := make([]entry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := sha1.New()
			if err := writeContents(k, iter.Key()); err != nil {
				return fmt.Errorf("map key: %w", err)
			}
			entries = append(entries, entry{key: Hash(k.Sum(nil)), value: iter.Value()})
		}
		sort.Slice(entries, func(i, j int) bool {
			return bytes.Compare(entries[i].key[:], entries[j].key[:]) < 0
		})
		for _, e := range entries {
			digest.Write(e.key[:])
			if err := writeContents(digest, e.value); err != nil {
				return fmt.Errorf("map value: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported kind %s of %s", v.Kind(), v.Type())
	}
	return nil
}

// Strings and byte slices are length-prefixed so that adjacent values cannot
// run into each other (e.g. ["ab"] and ["a", "b"] hash differently).
func writeString(digest io.Writer, s string) {
	writeLength(digest, len(s))
	io.WriteString(digest, s)
}

func writeBytes(digest io.Writer, b []byte) {
	writeLength(digest, len(b))
	digest.Write(b)
}

func writeLength(digest io.Writer, n int) {
	buf := make([]byte, binary.MaxVarintLen64)
	digest.Write(buf[:binary.PutUvarint(buf, uint64(n))])
}
