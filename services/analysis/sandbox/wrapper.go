// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sandbox executes candidate snippets in an isolated runtime
// and classifies the outcome. Execution is tiered: a Docker container
// when the daemon is reachable, a local subprocess when the snippet
// imports nothing dangerous, otherwise a skip. Either way the caller
// gets a usable SandboxOutcome, never a hang.
package sandbox

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// denyList names module roots that must never run in the unsandboxed
// subprocess fallback: process control, filesystem, networking,
// threading and signal primitives.
var denyList = map[string]struct{}{
	"os": {}, "subprocess": {}, "shutil": {}, "socket": {},
	"ctypes": {}, "multiprocessing": {}, "threading": {},
	"signal": {}, "pty": {}, "tty": {}, "termios": {}, "resource": {},
}

var importLine = regexp.MustCompile(`^\s*(?:import|from)\s+([A-Za-z_][\w.]*)`)

// UnsafeImports scans the snippet for deny-listed imports. The scan is
// textual on purpose: a snippet that does not parse still must not
// reach the subprocess tier with `import os` in it.
func UnsafeImports(source string) []string {
	var unsafe []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(source, "\n") {
		m := importLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		root := m[1]
		if idx := strings.Index(root, "."); idx >= 0 {
			root = root[:idx]
		}
		if _, denied := denyList[root]; !denied {
			continue
		}
		if _, dup := seen[root]; dup {
			continue
		}
		seen[root] = struct{}{}
		unsafe = append(unsafe, root)
	}
	return unsafe
}

// buildWrapper produces the Python wrapper that runs the snippet inside
// an isolated namespace and prints exactly one JSON status line.
//
// The user code runs via exec() in its own dict so a user variable can
// never collide with the wrapper's bookkeeping names; the code itself
// travels base64-encoded so no quoting in the snippet can break out of
// the wrapper.
func buildWrapper(code string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	var b strings.Builder
	b.WriteString("import base64 as _cg_b64\n")
	b.WriteString("import json as _cg_json\n")
	fmt.Fprintf(&b, "_cg_code = _cg_b64.b64decode(%q).decode(\"utf-8\")\n", encoded)
	b.WriteString(`_cg_result = {"success": True, "error_type": None, "message": None}
_cg_ns = {}
try:
    exec(_cg_code, _cg_ns)
except ZeroDivisionError as _cg_e:
    _cg_result = {"success": False, "error_type": "ZeroDivisionError", "message": str(_cg_e)}
except AttributeError as _cg_e:
    _cg_result = {"success": False, "error_type": "AttributeError", "message": str(_cg_e)}
except TypeError as _cg_e:
    _cg_result = {"success": False, "error_type": "TypeError", "message": str(_cg_e)}
except NameError as _cg_e:
    _cg_result = {"success": False, "error_type": "NameError", "message": str(_cg_e)}
except Exception as _cg_e:
    _cg_result = {"success": False, "error_type": type(_cg_e).__name__, "message": str(_cg_e)}
print(_cg_json.dumps(_cg_result))
`)
	return b.String()
}
