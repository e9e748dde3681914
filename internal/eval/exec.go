package eval

import (
	"errors"
	"slices"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
)

type flow uint8

const (
	flowNormal flow = iota
	flowReturn
	flowBreak
	flowContinue
)

// completion is the abrupt-or-normal result of a statement.
type completion struct {
	flow  flow
	label string
	value jsvalue.Value
}

// hoistVars declares every var name of the function body rooted at h as
// undefined in sc.
func (in *Interpreter) hoistVars(sc *scope, h ir.Handle) {
	s := in.store
	s.Walk(h, func(n ir.Handle) bool {
		switch s.Kind(n) {
		case ir.KindFunctionDecl, ir.KindFunctionExpr, ir.KindArrow, ir.KindMethod,
			ir.KindClassDecl, ir.KindClassExpr:
			return n == h
		case ir.KindVariableDecl:
			if s.Str(n, ir.AttrKind) != "var" {
				return true
			}
			for _, d := range s.Children(n) {
				for _, name := range in.boundNames(s.Child(d, 0)) {
					if _, ok := sc.vars[name]; !ok {
						sc.declare(name, jsvalue.Undefined, false)
					}
				}
			}
		}
		return true
	})
}

// boundNames lists the identifiers a binding target declares.
func (in *Interpreter) boundNames(target ir.Handle) []string {
	s := in.store
	var out []string
	var visit func(h ir.Handle)
	visit = func(h ir.Handle) {
		switch s.Kind(h) {
		case ir.KindIdentifier:
			out = append(out, s.Str(h, ir.AttrName))
		case ir.KindObject, ir.KindArray:
			for _, c := range s.Children(h) {
				visit(c)
			}
		case ir.KindProperty:
			kids := s.Children(h)
			visit(kids[len(kids)-1])
		case ir.KindAssign, ir.KindSpread:
			visit(s.Child(h, 0))
		}
	}
	visit(target)
	return out
}

// execList runs a statement list after hoisting its function declarations.
func (in *Interpreter) execList(sc *scope, stmts []ir.Handle) (completion, error) {
	s := in.store
	for _, st := range stmts {
		if s.Kind(st) == ir.KindExportDecl {
			st = s.Child(st, 0)
		}
		if s.Kind(st) == ir.KindFunctionDecl {
			sc.declare(s.Str(st, ir.AttrName), jsvalue.Obj(in.closure(sc, st)), false)
		}
	}
	for _, st := range stmts {
		c, err := in.exec(sc, st)
		if err != nil || c.flow != flowNormal {
			return c, err
		}
	}
	return completion{}, nil
}

func (in *Interpreter) exec(sc *scope, h ir.Handle) (completion, error) {
	if err := in.step(); err != nil {
		return completion{}, err
	}
	s := in.store
	kids := s.Children(h)
	switch s.Kind(h) {
	case ir.KindExprStmt:
		_, err := in.eval(sc, kids[0])
		return completion{}, err

	case ir.KindVariableDecl:
		return completion{}, in.execVariableDecl(sc, h)

	case ir.KindFunctionDecl, ir.KindEmpty, ir.KindDebugger, ir.KindInterfaceDecl, ir.KindTypeAlias:
		return completion{}, nil

	case ir.KindEnumDecl:
		return completion{}, in.execEnum(sc, h)

	case ir.KindExportDecl:
		switch s.Str(h, ir.AttrForm) {
		case ir.ExportDeclaration:
			return in.exec(sc, kids[0])
		case ir.ExportDefault:
			if isStatement(s.Kind(kids[0])) {
				return in.exec(sc, kids[0])
			}
			v, err := in.eval(sc, kids[0])
			if err == nil {
				sc.declare("default", v, true)
			}
			return completion{}, err
		}
		if _, ok := s.Attr(h, ir.AttrSource); ok {
			return completion{}, in.unsupported(h)
		}
		return completion{}, nil

	case ir.KindBlock:
		return in.execList(newScope(sc, false), kids)

	case ir.KindReturn:
		c := completion{flow: flowReturn}
		if len(kids) > 0 {
			v, err := in.eval(sc, kids[0])
			if err != nil {
				return completion{}, err
			}
			c.value = v
		}
		return c, nil

	case ir.KindIf:
		test, err := in.eval(sc, kids[0])
		if err != nil {
			return completion{}, err
		}
		if jsvalue.Truthy(test) {
			return in.exec(sc, kids[1])
		}
		if len(kids) > 2 {
			return in.exec(sc, kids[2])
		}
		return completion{}, nil

	case ir.KindWhile:
		for {
			test, err := in.eval(sc, kids[0])
			if err != nil || !jsvalue.Truthy(test) {
				return completion{}, err
			}
			c, err := in.exec(sc, kids[1])
			if stop, c, err := in.loopExit(h, c, err); stop {
				return c, err
			}
		}

	case ir.KindDoWhile:
		for {
			c, err := in.exec(sc, kids[0])
			if stop, c, err := in.loopExit(h, c, err); stop {
				return c, err
			}
			test, err := in.eval(sc, kids[1])
			if err != nil || !jsvalue.Truthy(test) {
				return completion{}, err
			}
		}

	case ir.KindFor:
		if s.Str(h, ir.AttrForm) == "classic" {
			return in.execFor(sc, h)
		}
		return in.execForInOf(sc, h)

	case ir.KindBreak:
		return completion{flow: flowBreak, label: s.Str(h, ir.AttrLabel)}, nil

	case ir.KindContinue:
		return completion{flow: flowContinue, label: s.Str(h, ir.AttrLabel)}, nil

	case ir.KindLabeled:
		c, err := in.exec(sc, kids[0])
		if err == nil && c.flow == flowBreak && c.label == s.Str(h, ir.AttrLabel) {
			return completion{}, nil
		}
		return c, err

	case ir.KindThrow:
		v, err := in.eval(sc, kids[0])
		if err != nil {
			return completion{}, err
		}
		return completion{}, &ThrowError{Value: v, Span: s.Span(h)}

	case ir.KindTry:
		return in.execTry(sc, h)

	case ir.KindSwitch:
		return in.execSwitch(sc, h)
	}
	return completion{}, in.unsupported(h)
}

func isStatement(k ir.Kind) bool {
	switch k {
	case ir.KindFunctionDecl, ir.KindClassDecl, ir.KindVariableDecl, ir.KindEnumDecl:
		return true
	}
	return false
}

// loopExit decides whether a loop body's completion ends the loop.
func (in *Interpreter) loopExit(loop ir.Handle, c completion, err error) (bool, completion, error) {
	if err != nil {
		return true, c, err
	}
	switch c.flow {
	case flowBreak:
		if c.label == "" || in.labels(loop, c.label) {
			return true, completion{}, nil
		}
		return true, c, nil
	case flowContinue:
		if c.label == "" || in.labels(loop, c.label) {
			return false, c, nil
		}
		return true, c, nil
	case flowReturn:
		return true, c, nil
	}
	return false, c, nil
}

// labels reports whether the statement h carries the label.
func (in *Interpreter) labels(h ir.Handle, label string) bool {
	s := in.store
	for p := s.Parent(h); s.Kind(p) == ir.KindLabeled; p = s.Parent(p) {
		if s.Str(p, ir.AttrLabel) == label {
			return true
		}
	}
	return false
}

func (in *Interpreter) execVariableDecl(sc *scope, h ir.Handle) error {
	s := in.store
	kind := s.Str(h, ir.AttrKind)
	for _, d := range s.Children(h) {
		target, init := s.Child(d, 0), s.Child(d, 1)
		if init == ir.NoHandle && kind == "var" {
			continue
		}
		v := jsvalue.Undefined
		if init != ir.NoHandle {
			var err error
			if v, err = in.eval(sc, init); err != nil {
				return err
			}
			in.nameFunction(v, target)
		}
		if err := in.bind(sc, target, v, kind); err != nil {
			return err
		}
	}
	return nil
}

// nameFunction gives an anonymous function the name of the binding it is
// assigned to.
func (in *Interpreter) nameFunction(v jsvalue.Value, target ir.Handle) {
	if f, ok := v.Obj.(*function); ok && f.name == "" && in.store.Kind(target) == ir.KindIdentifier {
		f.name = in.store.Str(target, ir.AttrName)
	}
}

func (in *Interpreter) execFor(sc *scope, h ir.Handle) (completion, error) {
	s := in.store
	kids := s.Children(h)
	init, test, update, body := kids[0], kids[1], kids[2], kids[3]
	loop := newScope(sc, false)
	switch s.Kind(init) {
	case ir.KindEmpty:
	case ir.KindVariableDecl:
		if err := in.execVariableDecl(loop, init); err != nil {
			return completion{}, err
		}
	default:
		if _, err := in.eval(loop, init); err != nil {
			return completion{}, err
		}
	}
	for {
		if s.Kind(test) != ir.KindEmpty {
			v, err := in.eval(loop, test)
			if err != nil || !jsvalue.Truthy(v) {
				return completion{}, err
			}
		}
		// Each iteration gets its own copy of the loop bindings so
		// closures capture the value of that iteration.
		iter := newScope(sc, false)
		for name, b := range loop.vars {
			iter.vars[name] = &binding{v: b.v, constant: b.constant}
		}
		c, err := in.exec(iter, body)
		for name, b := range iter.vars {
			loop.vars[name].v = b.v
		}
		if stop, c, err := in.loopExit(h, c, err); stop {
			return c, err
		}
		if s.Kind(update) != ir.KindEmpty {
			if _, err := in.eval(loop, update); err != nil {
				return completion{}, err
			}
		}
	}
}

func (in *Interpreter) execForInOf(sc *scope, h ir.Handle) (completion, error) {
	s := in.store
	kids := s.Children(h)
	left, right, body := kids[0], kids[1], kids[2]
	if s.Flag(h, ir.AttrAwait) {
		return completion{}, in.unsupported(h)
	}
	rv, err := in.eval(sc, right)
	if err != nil {
		return completion{}, err
	}
	var items []jsvalue.Value
	if s.Str(h, ir.AttrForm) == "in" {
		if o, ok := rv.Obj.(*object); ok {
			for _, k := range o.ownKeys() {
				items = append(items, jsvalue.Str(k))
			}
		}
	} else {
		if items, err = in.iterate(right, rv); err != nil {
			return completion{}, err
		}
	}
	for _, item := range items {
		iter := newScope(sc, false)
		if s.Kind(left) == ir.KindVariableDecl {
			err = in.bind(iter, s.Child(s.Child(left, 0), 0), item, s.Str(left, ir.AttrKind))
		} else {
			err = in.bind(iter, left, item, "")
		}
		if err != nil {
			return completion{}, err
		}
		c, err := in.exec(iter, body)
		if stop, c, err := in.loopExit(h, c, err); stop {
			return c, err
		}
	}
	return completion{}, nil
}

// iterate lists the values of an iterable: arrays and strings.
func (in *Interpreter) iterate(h ir.Handle, v jsvalue.Value) ([]jsvalue.Value, error) {
	switch {
	case v.Kind == jsvalue.KindString:
		var out []jsvalue.Value
		for _, r := range v.Str {
			out = append(out, jsvalue.Str(string(r)))
		}
		return out, nil
	case v.Kind == jsvalue.KindObject:
		if o, ok := v.Obj.(*object); ok && o.array {
			return slices.Clone(o.elems), nil
		}
	}
	return nil, in.throwError(h, "TypeError", Inspect(v)+" is not iterable")
}

func (in *Interpreter) execTry(sc *scope, h ir.Handle) (completion, error) {
	s := in.store
	kids := s.Children(h)
	c, err := in.exec(sc, kids[0])
	var thrown *ThrowError
	if len(kids) > 1 && s.Kind(kids[1]) == ir.KindCatch && errors.As(err, &thrown) {
		catch := s.Children(kids[1])
		inner := newScope(sc, false)
		if len(catch) == 2 {
			if err := in.bind(inner, catch[0], thrown.Value, "let"); err != nil {
				return completion{}, err
			}
		}
		c, err = in.exec(inner, catch[len(catch)-1])
	}
	if last := kids[len(kids)-1]; len(kids) > 1 && s.Kind(last) == ir.KindBlock {
		fc, ferr := in.exec(sc, last)
		if ferr != nil || fc.flow != flowNormal {
			return fc, ferr
		}
	}
	return c, err
}

func (in *Interpreter) execSwitch(sc *scope, h ir.Handle) (completion, error) {
	s := in.store
	kids := s.Children(h)
	disc, err := in.eval(sc, kids[0])
	if err != nil {
		return completion{}, err
	}
	cases := kids[1:]
	start := -1
	for i, c := range cases {
		if s.Flag(c, ir.AttrDefault) {
			continue
		}
		v, err := in.eval(sc, s.Child(c, 0))
		if err != nil {
			return completion{}, err
		}
		if jsvalue.StrictEquals(disc, v) {
			start = i
			break
		}
	}
	if start < 0 {
		start = slices.IndexFunc(cases, func(c ir.Handle) bool { return s.Flag(c, ir.AttrDefault) })
		if start < 0 {
			return completion{}, nil
		}
	}
	inner := newScope(sc, false)
	for _, c := range cases[start:] {
		body := s.Children(c)
		if !s.Flag(c, ir.AttrDefault) {
			body = body[1:]
		}
		res, err := in.execList(inner, body)
		if err != nil {
			return completion{}, err
		}
		if res.flow == flowBreak && res.label == "" {
			return completion{}, nil
		}
		if res.flow != flowNormal {
			return res, nil
		}
	}
	return completion{}, nil
}

func (in *Interpreter) execEnum(sc *scope, h ir.Handle) error {
	s := in.store
	o := newObject()
	next := 0.0
	for _, m := range s.Children(h) {
		name := s.Str(m, ir.AttrName)
		v := jsvalue.Num(next)
		if init := s.Child(m, 0); init != ir.NoHandle {
			var err error
			if v, err = in.eval(sc, init); err != nil {
				return err
			}
		}
		o.set(name, v)
		if v.Kind == jsvalue.KindNumber {
			o.set(jsvalue.NumberToString(v.Num), jsvalue.Str(name))
			next = v.Num + 1
		}
	}
	sc.declare(s.Str(h, ir.AttrName), jsvalue.Obj(o), true)
	return nil
}
