package fsm

import (
	"fmt"
	"math"
	"reflect"
	"slices"
)

// Schema names the data fields and methods every registered state type must
// expose. Data fields are copied from the outgoing state into the incoming
// one on every switch.
type Schema struct {
	Data    []string
	Methods []string
}

func (schema Schema) clone() Schema {
	return Schema{
		Data:    slices.Clone(schema.Data),
		Methods: slices.Clone(schema.Methods),
	}
}

// StateType describes a registrable state: its name, its Go type and how to
// construct a fresh instance of it.
type StateType struct {
	name      string
	typ       reflect.Type
	construct func(c Capability) any
}

// Define describes the state type S. construct is called every time the
// machine spins into the state and must return a fresh instance; the
// Capability it receives is how the instance requests switches and timers.
// The state is named after S unless a name is given.
func Define[S any](construct func(c Capability) *S, maybeName ...string) StateType {
	typ := reflect.TypeFor[S]()
	name := typ.Name()
	if len(maybeName) > 0 {
		name = maybeName[0]
	}
	return StateType{
		name: name,
		typ:  typ,
		construct: func(c Capability) any {
			instance := construct(c)
			if instance == nil {
				return nil
			}
			return instance
		},
	}
}

func (t StateType) Name() string {
	return t.name
}

// member locates a callable on an instance, either as a method of *S or as a
// func-typed field of S.
type member struct {
	method int
	field  []int
}

func (m member) bind(instance reflect.Value) (reflect.Value, bool) {
	if m.field == nil {
		return instance.Method(m.method), true
	}
	fn := instance.Elem().FieldByIndex(m.field)
	return fn, !fn.IsNil()
}

// registered is a StateType that passed schema validation, with the reflect
// lookups resolved once.
type registered struct {
	StateType
	fields  map[string][]int
	methods map[string]member
}

func (schema Schema) validate(t StateType, fieldTypes map[string]reflect.Type) (*registered, error) {
	if t.typ == nil || t.construct == nil {
		return nil, errorf(ErrRegistration, "state %q was not built with Define", t.name)
	}
	pointer := reflect.PointerTo(t.typ)
	isStruct := t.typ.Kind() == reflect.Struct
	r := &registered{
		StateType: t,
		fields:    make(map[string][]int, len(schema.Data)),
		methods:   make(map[string]member, len(schema.Methods)),
	}

	for _, name := range schema.Data {
		var field reflect.StructField
		ok := false
		if isStruct {
			field, ok = t.typ.FieldByName(name)
		}
		if !ok || !field.IsExported() {
			if _, isMethod := pointer.MethodByName(name); isMethod {
				return nil, errorf(ErrCallableField, "method %s should be a member instead, in state %s", name, t.name)
			}
			return nil, errorf(ErrMissingField, "missing member %s in state %s", name, t.name)
		}
		if field.Type.Kind() == reflect.Func {
			return nil, errorf(ErrCallableField, "member %s should not be callable, in state %s", name, t.name)
		}
		if expected, ok := fieldTypes[name]; ok && expected != field.Type {
			return nil, errorf(ErrFieldType, "member %s in state %s is %s, expected %s", name, t.name, field.Type, expected)
		}
		r.fields[name] = field.Index
	}

	for _, name := range schema.Methods {
		if method, ok := pointer.MethodByName(name); ok && method.IsExported() {
			r.methods[name] = member{method: method.Index}
			continue
		}
		if isStruct {
			if field, ok := t.typ.FieldByName(name); ok && field.IsExported() {
				if field.Type.Kind() != reflect.Func {
					return nil, errorf(ErrNotCallable, "member %s should be a method instead, in state %s", name, t.name)
				}
				r.methods[name] = member{field: field.Index}
				continue
			}
		}
		return nil, errorf(ErrMissingMethod, "missing method %s in state %s", name, t.name)
	}
	return r, nil
}

// lookup resolves a callable by name, preferring the schema methods resolved at
// registration.
func (r *registered) lookup(name string) (member, bool) {
	if m, ok := r.methods[name]; ok {
		return m, true
	}
	pointer := reflect.PointerTo(r.typ)
	if method, ok := pointer.MethodByName(name); ok && method.IsExported() {
		return member{method: method.Index}, true
	}
	if r.typ.Kind() == reflect.Struct {
		if field, ok := r.typ.FieldByName(name); ok && field.IsExported() && field.Type.Kind() == reflect.Func {
			return member{field: field.Index}, true
		}
	}
	return member{}, false
}

func (r *registered) fieldTypes() map[string]reflect.Type {
	types := make(map[string]reflect.Type, len(r.fields))
	for name, index := range r.fields {
		types[name] = r.typ.FieldByIndex(index).Type
	}
	return types
}

// capture reads the schema data fields of instance.
func (r *registered) capture(instance any) map[string]reflect.Value {
	values := make(map[string]reflect.Value, len(r.fields))
	elem := reflect.ValueOf(instance).Elem()
	for name, index := range r.fields {
		field := elem.FieldByIndex(index)
		value := reflect.New(field.Type()).Elem()
		value.Set(field)
		values[name] = value
	}
	return values
}

// restore overwrites the schema data fields of instance with values.
func (r *registered) restore(instance any, values map[string]reflect.Value) {
	elem := reflect.ValueOf(instance).Elem()
	for name, index := range r.fields {
		if value, ok := values[name]; ok {
			elem.FieldByIndex(index).Set(value)
		}
	}
}

func invoke(fn reflect.Value, name string, args []any) (any, error) {
	fnType := fn.Type()
	in := make([]reflect.Value, len(args))
	count := fnType.NumIn()
	if fnType.IsVariadic() {
		if len(args) < count-1 {
			return nil, errorf(ErrArguments, "method %s takes at least %d arguments, got %d", name, count-1, len(args))
		}
	} else if len(args) != count {
		return nil, errorf(ErrArguments, "method %s takes %d arguments, got %d", name, count, len(args))
	}
	for i, arg := range args {
		var param reflect.Type
		if fnType.IsVariadic() && i >= count-1 {
			param = fnType.In(count - 1).Elem()
		} else {
			param = fnType.In(i)
		}
		value, err := argument(arg, param)
		if err != nil {
			return nil, errorf(ErrArguments, "argument %d of method %s: %v", i, name, err)
		}
		in[i] = value
	}

	out := fn.Call(in)
	errorType := reflect.TypeFor[error]()
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if fnType.Out(0) == errorType {
			err, _ := out[0].Interface().(error)
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		var err error
		if last := out[len(out)-1]; fnType.Out(len(out)-1) == errorType {
			err, _ = last.Interface().(error)
			out = out[:len(out)-1]
		}
		if len(out) == 1 {
			return out[0].Interface(), err
		}
		results := make([]any, len(out))
		for i, value := range out {
			results[i] = value.Interface()
		}
		return results, err
	}
}

type argumentError struct {
	from  reflect.Type
	to    reflect.Type
	value any
}

func (err *argumentError) Error() string {
	if err.from == nil {
		return "nil is not assignable to " + err.to.String()
	}
	if err.value != nil {
		return fmt.Sprintf("%s %v does not fit %s", err.from, err.value, err.to)
	}
	return err.from.String() + " is not assignable to " + err.to.String()
}

func argument(arg any, param reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch param.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, &argumentError{to: param}
	}
	value := reflect.ValueOf(arg)
	if value.Type().AssignableTo(param) {
		return value, nil
	}
	if isNumeric(value.Kind()) && isNumeric(param.Kind()) {
		if converted, ok := convertNumber(value, param); ok {
			return converted, nil
		}
		return reflect.Value{}, &argumentError{from: value.Type(), to: param, value: arg}
	}
	return reflect.Value{}, &argumentError{from: value.Type(), to: param}
}

// convertNumber converts value to param only when no information is lost:
// integers must be in range and floats must be integral to become integers.
func convertNumber(value reflect.Value, param reflect.Type) (reflect.Value, bool) {
	target := reflect.New(param).Elem()
	switch {
	case value.CanInt():
		n := value.Int()
		switch {
		case target.CanInt():
			if target.OverflowInt(n) {
				return reflect.Value{}, false
			}
			target.SetInt(n)
		case target.CanUint():
			if n < 0 || target.OverflowUint(uint64(n)) {
				return reflect.Value{}, false
			}
			target.SetUint(uint64(n))
		default:
			if limit := exactFloat(param); n > limit || n < -limit {
				return reflect.Value{}, false
			}
			target.SetFloat(float64(n))
		}
	case value.CanUint():
		u := value.Uint()
		switch {
		case target.CanInt():
			if u > math.MaxInt64 || target.OverflowInt(int64(u)) {
				return reflect.Value{}, false
			}
			target.SetInt(int64(u))
		case target.CanUint():
			if target.OverflowUint(u) {
				return reflect.Value{}, false
			}
			target.SetUint(u)
		default:
			if u > uint64(exactFloat(param)) {
				return reflect.Value{}, false
			}
			target.SetFloat(float64(u))
		}
	default:
		f := value.Float()
		switch {
		case target.CanInt():
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || target.OverflowInt(int64(f)) {
				return reflect.Value{}, false
			}
			target.SetInt(int64(f))
		case target.CanUint():
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || target.OverflowUint(uint64(f)) {
				return reflect.Value{}, false
			}
			target.SetUint(uint64(f))
		default:
			if param.Kind() == reflect.Float32 && !math.IsNaN(f) && float64(float32(f)) != f {
				return reflect.Value{}, false
			}
			target.SetFloat(f)
		}
	}
	return target, true
}

// exactFloat is the largest integer magnitude a float of param's size holds
// exactly.
func exactFloat(param reflect.Type) int64 {
	if param.Kind() == reflect.Float32 {
		return 1 << 24
	}
	return 1 << 53
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
