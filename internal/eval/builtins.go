package eval

import (
	"math"
	"strings"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
	"github.com/roach88/lumen/internal/wtf8"
)

var (
	nan = math.NaN()
	inf = math.Inf(1)
)

type nativeFunc = func(in *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error)

func native(name string, fn nativeFunc) *function {
	return &function{name: name, native: fn}
}

func arg(args []jsvalue.Value, i int) jsvalue.Value {
	if i < len(args) {
		return args[i]
	}
	return jsvalue.Undefined
}

func installBuiltins(in *Interpreter) {
	console := newObject()
	console.set("log", jsvalue.Obj(native("log", func(in *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Inspect(a)
		}
		in.output = append(in.output, strings.Join(parts, " "))
		return jsvalue.Undefined, nil
	})))
	in.builtins.declare("console", jsvalue.Obj(console), true)

	m := newObject()
	m.set("PI", jsvalue.Num(math.Pi))
	m.set("E", jsvalue.Num(math.E))
	for name, fn := range map[string]func(float64) float64{
		"floor": math.Floor, "ceil": math.Ceil, "abs": math.Abs, "sqrt": math.Sqrt,
		"trunc": math.Trunc, "log": math.Log, "exp": math.Exp,
		"round": func(x float64) float64 { return math.Floor(x + 0.5) },
		"sign": func(x float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return x
		},
	} {
		m.set(name, jsvalue.Obj(native(name, func(_ *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Num(fn(jsvalue.ToNumber(arg(args, 0)))), nil
		})))
	}
	m.set("pow", jsvalue.Obj(native("pow", func(_ *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Num(jsvalue.Pow(jsvalue.ToNumber(arg(args, 0)), jsvalue.ToNumber(arg(args, 1)))), nil
	})))
	m.set("max", jsvalue.Obj(native("max", extremum(math.Inf(-1), func(a, b float64) bool { return a > b }))))
	m.set("min", jsvalue.Obj(native("min", extremum(math.Inf(1), func(a, b float64) bool { return a < b }))))
	in.builtins.declare("Math", jsvalue.Obj(m), true)

	in.builtins.declare("String", jsvalue.Obj(native("String", func(_ *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		if len(args) == 0 {
			return jsvalue.Str(""), nil
		}
		return jsvalue.Str(jsvalue.ToString(args[0])), nil
	})), true)
	in.builtins.declare("Number", jsvalue.Obj(native("Number", func(_ *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		if len(args) == 0 {
			return jsvalue.Num(0), nil
		}
		return jsvalue.Num(jsvalue.ToNumber(args[0])), nil
	})), true)
	in.builtins.declare("Boolean", jsvalue.Obj(native("Boolean", func(_ *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Boolean(jsvalue.Truthy(arg(args, 0))), nil
	})), true)
	in.builtins.declare("isNaN", jsvalue.Obj(native("isNaN", func(_ *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Boolean(math.IsNaN(jsvalue.ToNumber(arg(args, 0)))), nil
	})), true)
}

func extremum(start float64, better func(a, b float64) bool) nativeFunc {
	return func(_ *Interpreter, _ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		best := start
		for _, a := range args {
			n := jsvalue.ToNumber(a)
			if math.IsNaN(n) {
				return jsvalue.Num(nan), nil
			}
			if better(n, best) {
				best = n
			}
		}
		return jsvalue.Num(best), nil
	}
}

// relIndex resolves a possibly negative index argument against length n.
func relIndex(v jsvalue.Value, n, def int) int {
	if v.Kind == jsvalue.KindUndefined {
		return def
	}
	i := int(math.Trunc(jsvalue.ToNumber(v)))
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

func thisArray(this jsvalue.Value) *object {
	if o, ok := this.Obj.(*object); ok && o.array {
		return o
	}
	return newArray(nil)
}

func callback(in *Interpreter, v jsvalue.Value) (*function, error) {
	f, ok := v.Obj.(*function)
	if !ok {
		return nil, in.throwError(ir.NoHandle, "TypeError", Inspect(v)+" is not a function")
	}
	return f, nil
}

// arrayMethods is filled in init: its callbacks re-enter the interpreter,
// which looks methods up in this table.
var arrayMethods map[string]*function

func init() {
	arrayMethods = map[string]*function{
		"push": native("push", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			a := thisArray(this)
			a.elems = append(a.elems, args...)
			return jsvalue.Num(float64(len(a.elems))), nil
		}),
		"pop": native("pop", func(_ *Interpreter, this jsvalue.Value, _ []jsvalue.Value) (jsvalue.Value, error) {
			a := thisArray(this)
			if len(a.elems) == 0 {
				return jsvalue.Undefined, nil
			}
			last := a.elems[len(a.elems)-1]
			a.elems = a.elems[:len(a.elems)-1]
			return last, nil
		}),
		"join": native("join", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			sep := ","
			if v := arg(args, 0); v.Kind != jsvalue.KindUndefined {
				sep = jsvalue.ToString(v)
			}
			a := thisArray(this)
			parts := make([]string, len(a.elems))
			for i, e := range a.elems {
				if e.Kind != jsvalue.KindUndefined && e.Kind != jsvalue.KindNull {
					parts[i] = jsvalue.ToString(e)
				}
			}
			return jsvalue.Str(strings.Join(parts, sep)), nil
		}),
		"slice": native("slice", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			a := thisArray(this)
			n := len(a.elems)
			from, to := relIndex(arg(args, 0), n, 0), relIndex(arg(args, 1), n, n)
			var out []jsvalue.Value
			if from < to {
				out = append(out, a.elems[from:to]...)
			}
			return jsvalue.Obj(newArray(out)), nil
		}),
		"indexOf": native("indexOf", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for i, e := range thisArray(this).elems {
				if jsvalue.StrictEquals(e, arg(args, 0)) {
					return jsvalue.Num(float64(i)), nil
				}
			}
			return jsvalue.Num(-1), nil
		}),
		"includes": native("includes", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			want := arg(args, 0)
			for _, e := range thisArray(this).elems {
				if jsvalue.StrictEquals(e, want) || (isNaNValue(e) && isNaNValue(want)) {
					return jsvalue.True, nil
				}
			}
			return jsvalue.False, nil
		}),
		"map": native("map", func(in *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f, err := callback(in, arg(args, 0))
			if err != nil {
				return jsvalue.Undefined, err
			}
			var out []jsvalue.Value
			for i, e := range thisArray(this).elems {
				v, err := in.call(ir.NoHandle, f, jsvalue.Undefined, []jsvalue.Value{e, jsvalue.Num(float64(i)), this})
				if err != nil {
					return v, err
				}
				out = append(out, v)
			}
			return jsvalue.Obj(newArray(out)), nil
		}),
		"filter": native("filter", func(in *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f, err := callback(in, arg(args, 0))
			if err != nil {
				return jsvalue.Undefined, err
			}
			var out []jsvalue.Value
			for i, e := range thisArray(this).elems {
				v, err := in.call(ir.NoHandle, f, jsvalue.Undefined, []jsvalue.Value{e, jsvalue.Num(float64(i)), this})
				if err != nil {
					return v, err
				}
				if jsvalue.Truthy(v) {
					out = append(out, e)
				}
			}
			return jsvalue.Obj(newArray(out)), nil
		}),
		"forEach": native("forEach", func(in *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f, err := callback(in, arg(args, 0))
			if err != nil {
				return jsvalue.Undefined, err
			}
			for i, e := range thisArray(this).elems {
				if v, err := in.call(ir.NoHandle, f, jsvalue.Undefined, []jsvalue.Value{e, jsvalue.Num(float64(i)), this}); err != nil {
					return v, err
				}
			}
			return jsvalue.Undefined, nil
		}),
		"reduce": native("reduce", func(in *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f, err := callback(in, arg(args, 0))
			if err != nil {
				return jsvalue.Undefined, err
			}
			elems := thisArray(this).elems
			start := 0
			acc := arg(args, 1)
			if len(args) < 2 {
				if len(elems) == 0 {
					return jsvalue.Undefined, in.throwError(ir.NoHandle, "TypeError", "reduce of empty array with no initial value")
				}
				acc, start = elems[0], 1
			}
			for i := start; i < len(elems); i++ {
				if acc, err = in.call(ir.NoHandle, f, jsvalue.Undefined, []jsvalue.Value{acc, elems[i], jsvalue.Num(float64(i)), this}); err != nil {
					return acc, err
				}
			}
			return acc, nil
		}),
	}
}

func isNaNValue(v jsvalue.Value) bool {
	return v.Kind == jsvalue.KindNumber && math.IsNaN(v.Num)
}

func thisString(this jsvalue.Value) string { return jsvalue.ToString(this) }

var stringMethods = map[string]*function{
	"toUpperCase": native("toUpperCase", func(_ *Interpreter, this jsvalue.Value, _ []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Str(strings.ToUpper(thisString(this))), nil
	}),
	"toLowerCase": native("toLowerCase", func(_ *Interpreter, this jsvalue.Value, _ []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Str(strings.ToLower(thisString(this))), nil
	}),
	"trim": native("trim", func(_ *Interpreter, this jsvalue.Value, _ []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Str(strings.TrimSpace(thisString(this))), nil
	}),
	"includes": native("includes", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Boolean(strings.Contains(thisString(this), jsvalue.ToString(arg(args, 0)))), nil
	}),
	"startsWith": native("startsWith", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Boolean(strings.HasPrefix(thisString(this), jsvalue.ToString(arg(args, 0)))), nil
	}),
	"repeat": native("repeat", func(in *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		n := jsvalue.ToNumber(arg(args, 0))
		if n < 0 || math.IsInf(n, 0) {
			return jsvalue.Undefined, in.throwError(ir.NoHandle, "RangeError", "invalid count value")
		}
		return jsvalue.Str(strings.Repeat(thisString(this), int(n))), nil
	}),
	"split": native("split", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		str := thisString(this)
		if sep := arg(args, 0); sep.Kind != jsvalue.KindUndefined {
			var out []jsvalue.Value
			for _, part := range strings.Split(str, jsvalue.ToString(sep)) {
				out = append(out, jsvalue.Str(part))
			}
			return jsvalue.Obj(newArray(out)), nil
		}
		return jsvalue.Obj(newArray([]jsvalue.Value{jsvalue.Str(str)})), nil
	}),
	"slice": native("slice", func(_ *Interpreter, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		units := wtf8.Units(thisString(this))
		n := len(units)
		from, to := relIndex(arg(args, 0), n, 0), relIndex(arg(args, 1), n, n)
		if from >= to {
			return jsvalue.Str(""), nil
		}
		return jsvalue.Str(wtf8.FromUnits(units[from:to])), nil
	}),
}
