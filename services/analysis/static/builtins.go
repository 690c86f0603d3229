// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package static

// pythonBuiltins is the allow-list of names that are always defined in
// a Python runtime. Used identifiers in this set are never reported as
// hallucinated.
var pythonBuiltins = toSet([]string{
	"abs", "aiter", "all", "anext", "any", "ascii", "bin", "bool",
	"breakpoint", "bytearray", "bytes", "callable", "chr", "classmethod",
	"compile", "complex", "delattr", "dict", "dir", "divmod", "enumerate",
	"eval", "exec", "filter", "float", "format", "frozenset", "getattr",
	"globals", "hasattr", "hash", "help", "hex", "id", "input", "int",
	"isinstance", "issubclass", "iter", "len", "list", "locals", "map",
	"max", "memoryview", "min", "next", "object", "oct", "open", "ord",
	"pow", "print", "property", "range", "repr", "reversed", "round",
	"set", "setattr", "slice", "sorted", "staticmethod", "str", "sum",
	"super", "tuple", "type", "vars", "zip",
	"True", "False", "None", "NotImplemented", "Ellipsis",
	"self", "cls",
	"Exception", "BaseException", "ValueError", "TypeError", "KeyError",
	"IndexError", "AttributeError", "NameError", "RuntimeError",
	"ZeroDivisionError", "StopIteration", "FileNotFoundError", "OSError",
	"IOError", "NotImplementedError", "ArithmeticError", "OverflowError",
	"KeyboardInterrupt", "ImportError", "ModuleNotFoundError",
	"UnicodeDecodeError", "UnicodeEncodeError", "RecursionError",
	"__name__", "__file__", "__doc__", "__main__",
})

// commonModules are module names treated as resolvable even without an
// import statement in the snippet; generated snippets routinely assume
// them.
var commonModules = toSet([]string{
	"math", "os", "sys", "re", "json", "time", "datetime", "random",
	"collections", "itertools", "functools", "numpy", "pandas",
	"logging", "pathlib", "io", "typing", "copy", "pickle",
})

// numericFunctions take numeric arguments; a literal string argument
// to one of these is a wrong-input-type signal.
var numericFunctions = toSet([]string{
	"sqrt", "pow", "log", "exp", "sin", "cos", "tan", "ceil", "floor",
	"round", "abs", "int", "float",
})

// mappingMethods are attribute names that are legitimate on dicts and
// must not be reported by the wrong-attribute check.
var mappingMethods = toSet([]string{
	"keys", "values", "items", "get", "pop", "popitem", "update",
	"setdefault", "clear", "copy", "fromkeys",
})

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
