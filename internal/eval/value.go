package eval

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
)

// object is a plain object or an array. Arrays keep their elements in
// elems and report "length" as a property.
type object struct {
	keys  []string
	props map[string]jsvalue.Value
	array bool
	elems []jsvalue.Value
}

func newObject() *object {
	return &object{props: make(map[string]jsvalue.Value)}
}

func newArray(elems []jsvalue.Value) *object {
	return &object{props: make(map[string]jsvalue.Value), array: true, elems: elems}
}

func (o *object) get(key string) jsvalue.Value {
	if o.array {
		if key == "length" {
			return jsvalue.Num(float64(len(o.elems)))
		}
		if i, ok := arrayIndex(key); ok {
			if i < len(o.elems) {
				return o.elems[i]
			}
			return jsvalue.Undefined
		}
	}
	return o.props[key]
}

func (o *object) set(key string, v jsvalue.Value) {
	if o.array {
		if i, ok := arrayIndex(key); ok {
			for len(o.elems) <= i {
				o.elems = append(o.elems, jsvalue.Undefined)
			}
			o.elems[i] = v
			return
		}
		if key == "length" {
			n := int(jsvalue.ToUint32(jsvalue.ToNumber(v)))
			for len(o.elems) < n {
				o.elems = append(o.elems, jsvalue.Undefined)
			}
			o.elems = o.elems[:n]
			return
		}
	}
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

func (o *object) has(key string) bool {
	if o.array {
		if key == "length" {
			return true
		}
		if i, ok := arrayIndex(key); ok {
			return i < len(o.elems)
		}
	}
	_, ok := o.props[key]
	return ok
}

func (o *object) remove(key string) {
	if _, ok := o.props[key]; ok {
		delete(o.props, key)
		o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	}
}

// ownKeys lists keys in property order: indices first, then insertion
// order.
func (o *object) ownKeys() []string {
	var out []string
	for i := range o.elems {
		out = append(out, strconv.Itoa(i))
	}
	return append(out, o.keys...)
}

func (o *object) ToPrimitive(hint string) jsvalue.Value {
	if o.array {
		parts := make([]string, len(o.elems))
		for i, e := range o.elems {
			if e.Kind != jsvalue.KindUndefined && e.Kind != jsvalue.KindNull {
				parts[i] = jsvalue.ToString(e)
			}
		}
		return jsvalue.Str(strings.Join(parts, ","))
	}
	return jsvalue.Str("[object Object]")
}

func (o *object) TypeOf() string { return "object" }

func arrayIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// function is a closure over IR or a builtin.
type function struct {
	name   string
	decl   ir.Handle
	env    *scope
	arrow  bool
	this   jsvalue.Value // captured receiver for arrows
	native func(in *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error)
	props  *object
}

func (f *function) ToPrimitive(string) jsvalue.Value {
	return jsvalue.Str("function " + f.name + "() { [code] }")
}

func (f *function) TypeOf() string { return "function" }

// Inspect renders a value the way console.log shows it.
func Inspect(v jsvalue.Value) string {
	return inspect(v, false, 0)
}

func inspect(v jsvalue.Value, nested bool, depth int) string {
	switch v.Kind {
	case jsvalue.KindString:
		if nested {
			return strconv.Quote(v.Str)
		}
		return v.Str
	case jsvalue.KindObject:
		if depth > 4 {
			return "[...]"
		}
		switch o := v.Obj.(type) {
		case *function:
			if o.name == "" {
				return "[Function (anonymous)]"
			}
			return "[Function: " + o.name + "]"
		case *object:
			if o.array {
				parts := make([]string, len(o.elems))
				for i, e := range o.elems {
					parts[i] = inspect(e, true, depth+1)
				}
				return "[" + strings.Join(parts, ", ") + "]"
			}
			if len(o.keys) == 0 {
				return "{}"
			}
			parts := make([]string, len(o.keys))
			for i, k := range o.keys {
				parts[i] = k + ": " + inspect(o.props[k], true, depth+1)
			}
			return "{ " + strings.Join(parts, ", ") + " }"
		}
	}
	return jsvalue.ToString(v)
}
