// Package value implements the typed value descriptor shared by the
// adaptive radix tree and the deque: a closed tag set plus optional
// ownership/stringification hooks, so both containers can hold scalars,
// owned buffers, non-owning references, or caller-defined types without
// knowing anything about each other.
package value

import "fmt"

// Type is the closed tag set a Value carries. It mirrors the pgagroal
// value_type enum: scalars are stored inline, String/Mem are owned,
// Ref is non-owning, and JSON/custom types are opaque payloads dispatched
// through a Config.
type Type int

const (
	None Type = iota
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Bool
	Float
	Double
	String
	Mem
	Ref
	JSON
)

func (t Type) String() string {
	switch t {
	case None:
		return "None"
	case Int8:
		return "Int8"
	case UInt8:
		return "UInt8"
	case Int16:
		return "Int16"
	case UInt16:
		return "UInt16"
	case Int32:
		return "Int32"
	case UInt32:
		return "UInt32"
	case Int64:
		return "Int64"
	case UInt64:
		return "UInt64"
	case Bool:
		return "Bool"
	case Float:
		return "Float"
	case Double:
		return "Double"
	case String:
		return "String"
	case Mem:
		return "Mem"
	case Ref:
		return "Ref"
	case JSON:
		return "JSON"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Config supplies a custom destroyer and stringifier for a caller-defined
// type. When a Config is supplied at insertion, the stored tag becomes
// Ref: the container never copies or owns the payload itself, it only
// calls back through Config at removal/replace/string time.
type Config struct {
	// Destroy releases data. Called at most once per value, on replace
	// or on container teardown. May be nil (no-op).
	Destroy func(data any)
	// ToString renders data for diagnostics. May be nil.
	ToString func(data any) string
}

// Value is a tagged union: Type selects which field is meaningful.
// Scalars live inline; String/Mem/Ref/JSON/custom types live in Data.
type Value struct {
	Type Type

	i64 int64
	u64 uint64
	f32 float32
	f64 float64
	b   bool

	// Data holds the payload for String, Mem, Ref, JSON and custom
	// (Config-bearing) entries. For String it is a Go string (already an
	// owned, immutable copy). For Mem/Ref/JSON/custom it is whatever the
	// caller supplied.
	Data any

	// cfg is non-nil only for values inserted via a custom Config; it
	// governs destruction and stringification instead of the built-in
	// rules for Mem/JSON.
	cfg *Config
}

// New constructs a Value for one of the built-in scalar/owned/ref tags.
// For String, data must be a string; for Mem/Ref/JSON, data is stored
// as-is. Returns an error for None (rejected, mirroring the C API) or an
// unrecognized tag.
func New(t Type, data any) (Value, error) {
	if t == None {
		return Value{}, ErrNoneTag
	}
	v := Value{Type: t}
	switch t {
	case Int8, Int16, Int32, Int64:
		i, err := asInt64(data)
		if err != nil {
			return Value{}, err
		}
		v.i64 = i
	case UInt8, UInt16, UInt32, UInt64:
		u, err := asUint64(data)
		if err != nil {
			return Value{}, err
		}
		v.u64 = u
	case Bool:
		b, ok := data.(bool)
		if !ok {
			return Value{}, fmt.Errorf("value: %w: expected bool, got %T", ErrBadPayload, data)
		}
		v.b = b
	case Float:
		f, ok := data.(float32)
		if !ok {
			return Value{}, fmt.Errorf("value: %w: expected float32, got %T", ErrBadPayload, data)
		}
		v.f32 = f
	case Double:
		d, ok := data.(float64)
		if !ok {
			return Value{}, fmt.Errorf("value: %w: expected float64, got %T", ErrBadPayload, data)
		}
		v.f64 = d
	case String:
		s, ok := data.(string)
		if !ok {
			return Value{}, fmt.Errorf("value: %w: expected string, got %T", ErrBadPayload, data)
		}
		// Owned by copy: Go strings are immutable, so assignment already
		// gives the container its own reference; no further duplication
		// is required to satisfy the "copy on insert" contract.
		v.Data = s
	case Mem, Ref, JSON:
		v.Data = data
	default:
		return Value{}, fmt.Errorf("value: %w: %v", ErrUnknownTag, t)
	}
	return v, nil
}

// NewWithConfig builds a Ref-tagged value carrying a caller-defined
// destroyer/stringifier. Mirrors insert_with_config's "stored tag becomes
// Ref" contract.
func NewWithConfig(data any, cfg *Config) Value {
	return Value{Type: Ref, Data: data, cfg: cfg}
}

// Destroy releases owned resources held by v: a value built with a
// Config (tag Ref) calls its Destroy hook if set; a Mem payload that
// implements Destroyer has its Destroy called; String, plain Ref, JSON
// and scalar values need nothing.
func (v Value) Destroy() {
	if v.cfg != nil && v.cfg.Destroy != nil {
		v.cfg.Destroy(v.Data)
		return
	}
	if v.Type == Mem {
		if d, ok := v.Data.(Destroyer); ok {
			d.Destroy()
		}
	}
}

// Destroyer is implemented by Mem payloads that own a release path (e.g.
// a pooled buffer). Payloads that don't implement it are left alone on
// Destroy, mirroring a bare malloc'd blob with no registered destructor.
type Destroyer interface{ Destroy() }

// String renders v for diagnostics. Uses the custom stringifier when
// present, falls back to a type-appropriate default otherwise.
func (v Value) String() string {
	if v.cfg != nil && v.cfg.ToString != nil {
		return v.cfg.ToString(v.Data)
	}
	switch v.Type {
	case None:
		return ""
	case Int8, Int16, Int32, Int64:
		return fmt.Sprintf("%d", v.i64)
	case UInt8, UInt16, UInt32, UInt64:
		return fmt.Sprintf("%d", v.u64)
	case Bool:
		return fmt.Sprintf("%t", v.b)
	case Float:
		return fmt.Sprintf("%g", v.f32)
	case Double:
		return fmt.Sprintf("%g", v.f64)
	case String:
		s, _ := v.Data.(string)
		return s
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// Int64 returns the inline integer payload for any integer tag.
func (v Value) Int64() int64 { return v.i64 }

// Uint64 returns the inline unsigned-integer payload for any unsigned tag.
func (v Value) Uint64() uint64 { return v.u64 }

// Bool returns the inline boolean payload.
func (v Value) Bool() bool { return v.b }

// Float32 returns the inline float payload.
func (v Value) Float32() float32 { return v.f32 }

// Float64 returns the inline double payload.
func (v Value) Float64() float64 { return v.f64 }

func asInt64(data any) (int64, error) {
	switch n := data.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int:
		return int64(n), nil
	case bool:
		// mirrors the C test suite's habit of passing -1/true through an
		// untyped uintptr_t payload when probing error paths.
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value: %w: expected integer, got %T", ErrBadPayload, data)
	}
}

func asUint64(data any) (uint64, error) {
	switch n := data.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("value: %w: expected unsigned integer, got %T", ErrBadPayload, data)
	}
}
