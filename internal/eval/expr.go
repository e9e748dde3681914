package eval

import (
	"strings"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
	"github.com/roach88/lumen/internal/wtf8"
)

func (in *Interpreter) eval(sc *scope, h ir.Handle) (jsvalue.Value, error) {
	if err := in.step(); err != nil {
		return jsvalue.Undefined, err
	}
	s := in.store
	kids := s.Children(h)
	switch s.Kind(h) {
	case ir.KindNumber:
		n, _ := s.Num(h, ir.AttrValue)
		return jsvalue.Num(n), nil
	case ir.KindString:
		return jsvalue.Str(s.Str(h, ir.AttrValue)), nil
	case ir.KindBoolean:
		return jsvalue.Boolean(s.Flag(h, ir.AttrValue)), nil
	case ir.KindNull:
		return jsvalue.Null, nil

	case ir.KindTemplate:
		var out string
		for i, c := range kids {
			if i%2 == 0 {
				out = wtf8.Concat(out, s.Str(c, ir.AttrValue))
				continue
			}
			v, err := in.eval(sc, c)
			if err != nil {
				return v, err
			}
			out = wtf8.Concat(out, jsvalue.ToString(v))
		}
		return jsvalue.Str(out), nil

	case ir.KindIdentifier:
		name := s.Str(h, ir.AttrName)
		if b := sc.lookup(name); b != nil {
			return b.v, nil
		}
		switch name {
		case "undefined":
			return jsvalue.Undefined, nil
		case "NaN":
			return jsvalue.Num(nan), nil
		case "Infinity":
			return jsvalue.Num(inf), nil
		}
		return jsvalue.Undefined, in.throwError(h, "ReferenceError", name+" is not defined")

	case ir.KindThis:
		if b := sc.lookup("this"); b != nil {
			return b.v, nil
		}
		return jsvalue.Undefined, nil

	case ir.KindBinary:
		return in.evalBinary(sc, h)

	case ir.KindLogical:
		left, err := in.eval(sc, kids[0])
		if err != nil {
			return left, err
		}
		switch s.Str(h, ir.AttrOp) {
		case "&&":
			if !jsvalue.Truthy(left) {
				return left, nil
			}
		case "||":
			if jsvalue.Truthy(left) {
				return left, nil
			}
		case "??":
			if left.Kind != jsvalue.KindUndefined && left.Kind != jsvalue.KindNull {
				return left, nil
			}
		}
		return in.eval(sc, kids[1])

	case ir.KindUnary:
		return in.evalUnary(sc, h)

	case ir.KindUpdate:
		r, err := in.reference(sc, kids[0])
		if err != nil {
			return jsvalue.Undefined, err
		}
		old, err := r.get()
		if err != nil {
			return old, err
		}
		n := jsvalue.ToNumber(old)
		next := n + 1
		if s.Str(h, ir.AttrOp) == "--" {
			next = n - 1
		}
		if err := r.set(jsvalue.Num(next)); err != nil {
			return jsvalue.Undefined, err
		}
		if s.Flag(h, ir.AttrPrefix) {
			return jsvalue.Num(next), nil
		}
		return jsvalue.Num(n), nil

	case ir.KindAssign:
		return in.evalAssign(sc, h)

	case ir.KindConditional:
		test, err := in.eval(sc, kids[0])
		if err != nil {
			return test, err
		}
		if jsvalue.Truthy(test) {
			return in.eval(sc, kids[1])
		}
		return in.eval(sc, kids[2])

	case ir.KindSequence:
		var v jsvalue.Value
		for _, c := range kids {
			var err error
			if v, err = in.eval(sc, c); err != nil {
				return v, err
			}
		}
		return v, nil

	case ir.KindCall:
		return in.evalCall(sc, h)

	case ir.KindNew:
		return in.evalNew(sc, h)

	case ir.KindMember:
		obj, err := in.eval(sc, kids[0])
		if err != nil {
			return obj, err
		}
		if s.Flag(h, ir.AttrOptional) && (obj.Kind == jsvalue.KindUndefined || obj.Kind == jsvalue.KindNull) {
			return jsvalue.Undefined, nil
		}
		key, err := in.memberKey(sc, h)
		if err != nil {
			return jsvalue.Undefined, err
		}
		return in.getProperty(h, obj, key)

	case ir.KindArrow, ir.KindFunctionExpr:
		f := in.closure(sc, h)
		if s.Kind(h) == ir.KindFunctionExpr && f.name != "" {
			// A named function expression sees its own name.
			inner := newScope(sc, false)
			inner.declare(f.name, jsvalue.Obj(f), true)
			f.env = inner
		}
		return jsvalue.Obj(f), nil

	case ir.KindObject:
		return in.evalObject(sc, h)

	case ir.KindArray:
		var elems []jsvalue.Value
		for _, c := range kids {
			switch s.Kind(c) {
			case ir.KindEmpty:
				elems = append(elems, jsvalue.Undefined)
			case ir.KindSpread:
				v, err := in.eval(sc, s.Child(c, 0))
				if err != nil {
					return v, err
				}
				items, err := in.iterate(c, v)
				if err != nil {
					return v, err
				}
				elems = append(elems, items...)
			default:
				v, err := in.eval(sc, c)
				if err != nil {
					return v, err
				}
				elems = append(elems, v)
			}
		}
		return jsvalue.Obj(newArray(elems)), nil

	case ir.KindAs, ir.KindNonNull:
		return in.eval(sc, kids[0])
	}
	return jsvalue.Undefined, in.unsupported(h)
}

func (in *Interpreter) evalBinary(sc *scope, h ir.Handle) (jsvalue.Value, error) {
	s := in.store
	a, err := in.eval(sc, s.Child(h, 0))
	if err != nil {
		return a, err
	}
	b, err := in.eval(sc, s.Child(h, 1))
	if err != nil {
		return b, err
	}
	op := s.Str(h, ir.AttrOp)
	if op == "in" {
		o, ok := b.Obj.(*object)
		if !ok {
			return jsvalue.Undefined, in.throwError(h, "TypeError", "cannot use 'in' operator on "+Inspect(b))
		}
		return jsvalue.Boolean(o.has(jsvalue.ToString(a))), nil
	}
	v, ok := jsvalue.Binary(op, a, b)
	if !ok {
		return jsvalue.Undefined, in.unsupported(h)
	}
	return v, nil
}

func (in *Interpreter) evalUnary(sc *scope, h ir.Handle) (jsvalue.Value, error) {
	s := in.store
	arg := s.Child(h, 0)
	switch s.Str(h, ir.AttrOp) {
	case "typeof":
		if s.Kind(arg) == ir.KindIdentifier && sc.lookup(s.Str(arg, ir.AttrName)) == nil {
			// typeof tolerates undeclared names
			v, err := in.eval(sc, arg)
			if err != nil {
				return jsvalue.Str("undefined"), nil
			}
			return jsvalue.Str(jsvalue.TypeOf(v)), nil
		}
	case "delete":
		if s.Kind(arg) != ir.KindMember {
			return jsvalue.True, nil
		}
		obj, err := in.eval(sc, s.Child(arg, 0))
		if err != nil {
			return obj, err
		}
		key, err := in.memberKey(sc, arg)
		if err != nil {
			return obj, err
		}
		if o, ok := obj.Obj.(*object); ok {
			o.remove(key)
		}
		return jsvalue.True, nil
	}
	v, err := in.eval(sc, arg)
	if err != nil {
		return v, err
	}
	r, ok := jsvalue.Unary(s.Str(h, ir.AttrOp), v)
	if !ok {
		return jsvalue.Undefined, in.unsupported(h)
	}
	return r, nil
}

// compound maps compound assignment operators to their binary operator.
func compound(op string) string { return strings.TrimSuffix(op, "=") }

func (in *Interpreter) evalAssign(sc *scope, h ir.Handle) (jsvalue.Value, error) {
	s := in.store
	target, value := s.Child(h, 0), s.Child(h, 1)
	op := s.Str(h, ir.AttrOp)
	if op == "=" {
		v, err := in.eval(sc, value)
		if err != nil {
			return v, err
		}
		in.nameFunction(v, target)
		return v, in.bind(sc, target, v, "")
	}

	r, err := in.reference(sc, target)
	if err != nil {
		return jsvalue.Undefined, err
	}
	old, err := r.get()
	if err != nil {
		return old, err
	}
	var v jsvalue.Value
	switch op {
	case "&&=", "||=", "??=":
		short := false
		switch op {
		case "&&=":
			short = !jsvalue.Truthy(old)
		case "||=":
			short = jsvalue.Truthy(old)
		default:
			short = old.Kind != jsvalue.KindUndefined && old.Kind != jsvalue.KindNull
		}
		if short {
			return old, nil
		}
		if v, err = in.eval(sc, value); err != nil {
			return v, err
		}
	default:
		rhs, err := in.eval(sc, value)
		if err != nil {
			return rhs, err
		}
		var ok bool
		if v, ok = jsvalue.Binary(compound(op), old, rhs); !ok {
			return jsvalue.Undefined, in.unsupported(h)
		}
	}
	return v, r.set(v)
}

func (in *Interpreter) evalObject(sc *scope, h ir.Handle) (jsvalue.Value, error) {
	s := in.store
	o := newObject()
	for _, c := range s.Children(h) {
		switch s.Kind(c) {
		case ir.KindSpread:
			v, err := in.eval(sc, s.Child(c, 0))
			if err != nil {
				return v, err
			}
			if src, ok := v.Obj.(*object); ok {
				for _, k := range src.ownKeys() {
					o.set(k, src.get(k))
				}
			}
		case ir.KindProperty:
			key, err := in.propertyKey(sc, c)
			if err != nil {
				return jsvalue.Undefined, err
			}
			kids := s.Children(c)
			v, err := in.eval(sc, kids[len(kids)-1])
			if err != nil {
				return v, err
			}
			if f, ok := v.Obj.(*function); ok && f.name == "" {
				f.name = key
			}
			o.set(key, v)
		case ir.KindMethod:
			if k := s.Str(c, ir.AttrKind); k == "get" || k == "set" || s.Flag(c, ir.AttrAsync) || s.Flag(c, ir.AttrGenerator) {
				return jsvalue.Undefined, in.unsupported(c)
			}
			key, err := in.propertyKey(sc, c)
			if err != nil {
				return jsvalue.Undefined, err
			}
			f := in.closure(sc, c)
			f.name = key
			o.set(key, jsvalue.Obj(f))
		default:
			return jsvalue.Undefined, in.unsupported(c)
		}
	}
	return jsvalue.Obj(o), nil
}

// propertyKey resolves the key of a Property or Method.
func (in *Interpreter) propertyKey(sc *scope, h ir.Handle) (string, error) {
	s := in.store
	if s.Flag(h, ir.AttrComputed) {
		v, err := in.eval(sc, s.Child(h, 0))
		if err != nil {
			return "", err
		}
		return jsvalue.ToString(v), nil
	}
	if s.Kind(h) == ir.KindProperty {
		return s.Str(h, ir.AttrKey), nil
	}
	return s.Str(h, ir.AttrName), nil
}

func (in *Interpreter) memberKey(sc *scope, h ir.Handle) (string, error) {
	s := in.store
	if !s.Flag(h, ir.AttrComputed) {
		return s.Str(h, ir.AttrName), nil
	}
	v, err := in.eval(sc, s.Child(h, 1))
	if err != nil {
		return "", err
	}
	return jsvalue.ToString(v), nil
}

func (in *Interpreter) getProperty(h ir.Handle, obj jsvalue.Value, key string) (jsvalue.Value, error) {
	switch obj.Kind {
	case jsvalue.KindUndefined, jsvalue.KindNull:
		return jsvalue.Undefined, in.throwError(h, "TypeError", "cannot read property '"+key+"' of "+jsvalue.ToString(obj))
	case jsvalue.KindString:
		if key == "length" {
			return jsvalue.Num(float64(wtf8.Len(obj.Str))), nil
		}
		if i, ok := arrayIndex(key); ok {
			units := wtf8.Units(obj.Str)
			if i < len(units) {
				return jsvalue.Str(wtf8.FromUnits(units[i : i+1])), nil
			}
			return jsvalue.Undefined, nil
		}
		if m, ok := stringMethods[key]; ok {
			return jsvalue.Obj(m), nil
		}
	case jsvalue.KindObject:
		switch o := obj.Obj.(type) {
		case *object:
			if o.has(key) {
				return o.get(key), nil
			}
			if o.array {
				if m, ok := arrayMethods[key]; ok {
					return jsvalue.Obj(m), nil
				}
			}
		case *function:
			if key == "name" {
				return jsvalue.Str(o.name), nil
			}
			if o.props != nil {
				return o.props.get(key), nil
			}
		}
	}
	return jsvalue.Undefined, nil
}

// ref is an assignable location.
type ref struct {
	get func() (jsvalue.Value, error)
	set func(jsvalue.Value) error
}

func (in *Interpreter) reference(sc *scope, h ir.Handle) (ref, error) {
	s := in.store
	switch s.Kind(h) {
	case ir.KindIdentifier:
		name := s.Str(h, ir.AttrName)
		return ref{
			get: func() (jsvalue.Value, error) { return in.eval(sc, h) },
			set: func(v jsvalue.Value) error { return in.assignName(sc, h, name, v) },
		}, nil
	case ir.KindMember:
		obj, err := in.eval(sc, s.Child(h, 0))
		if err != nil {
			return ref{}, err
		}
		key, err := in.memberKey(sc, h)
		if err != nil {
			return ref{}, err
		}
		return ref{
			get: func() (jsvalue.Value, error) { return in.getProperty(h, obj, key) },
			set: func(v jsvalue.Value) error { return in.setProperty(h, obj, key, v) },
		}, nil
	case ir.KindAs, ir.KindNonNull:
		return in.reference(sc, s.Child(h, 0))
	}
	return ref{}, in.unsupported(h)
}

func (in *Interpreter) assignName(sc *scope, h ir.Handle, name string, v jsvalue.Value) error {
	b := sc.lookup(name)
	if b == nil {
		// Sloppy-mode implicit global.
		in.global.declare(name, v, false)
		return nil
	}
	if b.constant {
		return in.throwError(h, "TypeError", "assignment to constant variable "+name)
	}
	b.v = v
	return nil
}

func (in *Interpreter) setProperty(h ir.Handle, obj jsvalue.Value, key string, v jsvalue.Value) error {
	switch o := obj.Obj.(type) {
	case *object:
		o.set(key, v)
		return nil
	case *function:
		if o.props == nil {
			o.props = newObject()
		}
		o.props.set(key, v)
		return nil
	}
	if obj.Kind == jsvalue.KindUndefined || obj.Kind == jsvalue.KindNull {
		return in.throwError(h, "TypeError", "cannot set property '"+key+"' of "+jsvalue.ToString(obj))
	}
	return nil
}

// bind stores v into a binding target. kind is the declaration keyword, or
// "" for a plain assignment.
func (in *Interpreter) bind(sc *scope, target ir.Handle, v jsvalue.Value, kind string) error {
	s := in.store
	switch s.Kind(target) {
	case ir.KindIdentifier:
		name := s.Str(target, ir.AttrName)
		switch kind {
		case "":
			return in.assignName(sc, target, name, v)
		case "var":
			fs := sc.functionScope()
			if b, ok := fs.vars[name]; ok {
				b.v = v
			} else {
				fs.declare(name, v, false)
			}
			return nil
		default:
			sc.declare(name, v, kind == "const")
			return nil
		}

	case ir.KindAssign:
		// default value in a pattern
		if v.Kind == jsvalue.KindUndefined {
			var err error
			if v, err = in.eval(sc, s.Child(target, 1)); err != nil {
				return err
			}
		}
		return in.bind(sc, s.Child(target, 0), v, kind)

	case ir.KindObject:
		if v.Kind == jsvalue.KindUndefined || v.Kind == jsvalue.KindNull {
			return in.throwError(target, "TypeError", "cannot destructure "+jsvalue.ToString(v))
		}
		used := make(map[string]bool)
		for _, p := range s.Children(target) {
			if s.Kind(p) == ir.KindSpread {
				rest := newObject()
				if o, ok := v.Obj.(*object); ok {
					for _, k := range o.ownKeys() {
						if !used[k] {
							rest.set(k, o.get(k))
						}
					}
				}
				if err := in.bind(sc, s.Child(p, 0), jsvalue.Obj(rest), kind); err != nil {
					return err
				}
				continue
			}
			key, err := in.propertyKey(sc, p)
			if err != nil {
				return err
			}
			used[key] = true
			pv, err := in.getProperty(p, v, key)
			if err != nil {
				return err
			}
			kids := s.Children(p)
			if err := in.bind(sc, kids[len(kids)-1], pv, kind); err != nil {
				return err
			}
		}
		return nil

	case ir.KindArray:
		items, err := in.iterate(target, v)
		if err != nil {
			return err
		}
		for i, e := range s.Children(target) {
			switch s.Kind(e) {
			case ir.KindEmpty:
				continue
			case ir.KindSpread:
				var rest []jsvalue.Value
				if i < len(items) {
					rest = items[i:]
				}
				if err := in.bind(sc, s.Child(e, 0), jsvalue.Obj(newArray(rest)), kind); err != nil {
					return err
				}
				return nil
			}
			item := jsvalue.Undefined
			if i < len(items) {
				item = items[i]
			}
			if err := in.bind(sc, e, item, kind); err != nil {
				return err
			}
		}
		return nil

	case ir.KindMember, ir.KindAs, ir.KindNonNull:
		r, err := in.reference(sc, target)
		if err != nil {
			return err
		}
		return r.set(v)
	}
	return in.unsupported(target)
}

