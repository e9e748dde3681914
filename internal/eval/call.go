package eval

import (
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
)

func (in *Interpreter) closure(sc *scope, h ir.Handle) *function {
	s := in.store
	f := &function{name: s.Str(h, ir.AttrName), decl: h, env: sc}
	if s.Kind(h) == ir.KindArrow {
		f.arrow = true
	}
	return f
}

func (in *Interpreter) arguments(sc *scope, args []ir.Handle) ([]jsvalue.Value, error) {
	s := in.store
	var out []jsvalue.Value
	for _, a := range args {
		if s.Kind(a) == ir.KindSpread {
			v, err := in.eval(sc, s.Child(a, 0))
			if err != nil {
				return nil, err
			}
			items, err := in.iterate(a, v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		v, err := in.eval(sc, a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interpreter) evalCall(sc *scope, h ir.Handle) (jsvalue.Value, error) {
	s := in.store
	kids := s.Children(h)
	callee := kids[0]
	this := jsvalue.Undefined
	var fv jsvalue.Value
	var err error
	switch s.Kind(callee) {
	case ir.KindMember:
		if this, err = in.eval(sc, s.Child(callee, 0)); err != nil {
			return this, err
		}
		if s.Flag(callee, ir.AttrOptional) && (this.Kind == jsvalue.KindUndefined || this.Kind == jsvalue.KindNull) {
			return jsvalue.Undefined, nil
		}
		key, err := in.memberKey(sc, callee)
		if err != nil {
			return jsvalue.Undefined, err
		}
		if fv, err = in.getProperty(callee, this, key); err != nil {
			return fv, err
		}
	case ir.KindSuper:
		return jsvalue.Undefined, in.unsupported(callee)
	default:
		if fv, err = in.eval(sc, callee); err != nil {
			return fv, err
		}
	}
	if s.Flag(h, ir.AttrOptional) && (fv.Kind == jsvalue.KindUndefined || fv.Kind == jsvalue.KindNull) {
		return jsvalue.Undefined, nil
	}
	f, ok := fv.Obj.(*function)
	if !ok {
		return jsvalue.Undefined, in.throwError(h, "TypeError", Inspect(fv)+" is not a function")
	}
	args, err := in.arguments(sc, kids[1:])
	if err != nil {
		return jsvalue.Undefined, err
	}
	return in.call(h, f, this, args)
}

func (in *Interpreter) evalNew(sc *scope, h ir.Handle) (jsvalue.Value, error) {
	s := in.store
	kids := s.Children(h)
	fv, err := in.eval(sc, kids[0])
	if err != nil {
		return fv, err
	}
	f, ok := fv.Obj.(*function)
	if !ok || f.arrow || f.native != nil {
		return jsvalue.Undefined, in.throwError(h, "TypeError", Inspect(fv)+" is not a constructor")
	}
	args, err := in.arguments(sc, kids[1:])
	if err != nil {
		return jsvalue.Undefined, err
	}
	this := jsvalue.Obj(newObject())
	v, err := in.call(h, f, this, args)
	if err != nil {
		return v, err
	}
	if v.Kind == jsvalue.KindObject {
		return v, nil
	}
	return this, nil
}

// call invokes f. site is the calling node, used for error positions.
func (in *Interpreter) call(site ir.Handle, f *function, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
	if f.native != nil {
		return f.native(in, this, args)
	}
	s := in.store
	if s.Flag(f.decl, ir.AttrAsync) || s.Flag(f.decl, ir.AttrGenerator) {
		return jsvalue.Undefined, in.unsupported(f.decl)
	}
	if in.depth >= maxDepth {
		return jsvalue.Undefined, in.throwError(site, "RangeError", "maximum call stack size exceeded")
	}
	in.depth++
	defer func() { in.depth-- }()

	sc := newScope(f.env, true)
	if !f.arrow {
		sc.declare("this", this, true)
	}
	kids := s.Children(f.decl)
	body := kids[len(kids)-1]
	i := 0
	for _, p := range kids[:len(kids)-1] {
		if s.Kind(p) != ir.KindParam {
			// computed method key
			continue
		}
		pkids := s.Children(p)
		v := jsvalue.Undefined
		if s.Flag(p, ir.AttrRest) {
			var rest []jsvalue.Value
			if i < len(args) {
				rest = args[i:]
			}
			v = jsvalue.Obj(newArray(rest))
		} else if i < len(args) {
			v = args[i]
		}
		i++
		if v.Kind == jsvalue.KindUndefined && len(pkids) > 1 {
			var err error
			if v, err = in.eval(sc, pkids[1]); err != nil {
				return v, err
			}
		}
		if err := in.bind(sc, pkids[0], v, "let"); err != nil {
			return jsvalue.Undefined, err
		}
	}

	if s.Kind(body) != ir.KindBlock {
		return in.eval(sc, body)
	}
	in.hoistVars(sc, body)
	c, err := in.execList(sc, s.Children(body))
	if err != nil {
		return jsvalue.Undefined, err
	}
	if c.flow == flowReturn {
		return c.value, nil
	}
	return jsvalue.Undefined, nil
}
