// Package testwasm hand-assembles minimal WebAssembly core modules for
// tests, so fixtures need no external toolchain. Only the handful of
// shapes the host tests exercise are supported.
package testwasm

// Section ids from the core binary format.
const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secExport   = 7
	secCode     = 10
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func name(s string) []byte {
	out := uleb(uint32(len(s)))
	return append(out, s...)
}

// EmptyModule returns a module with no sections at all. It compiles but
// exports nothing.
func EmptyModule() []byte {
	return append([]byte{}, header...)
}

// ModuleWithExports returns a module exporting one empty nullary function
// under each given name.
func ModuleWithExports(names ...string) []byte {
	mod := append([]byte{}, header...)

	// one type: () -> ()
	mod = append(mod, section(secType, []byte{0x01, 0x60, 0x00, 0x00})...)
	// one function of that type
	mod = append(mod, section(secFunction, []byte{0x01, 0x00})...)

	exports := uleb(uint32(len(names)))
	for _, n := range names {
		exports = append(exports, name(n)...)
		exports = append(exports, 0x00, 0x00) // func kind, index 0
	}
	mod = append(mod, section(secExport, exports)...)

	// body: no locals, end
	mod = append(mod, section(secCode, []byte{0x01, 0x02, 0x00, 0x0b})...)
	return mod
}

// ModuleWithExit returns a module whose _start calls
// wasi_snapshot_preview1.proc_exit with the given code. Codes must stay
// below 64 to keep the constant a single signed-LEB byte.
func ModuleWithExit(code uint32) []byte {
	if code >= 64 {
		panic("testwasm: exit code must be < 64")
	}
	mod := append([]byte{}, header...)

	// type 0: (i32) -> (), type 1: () -> ()
	mod = append(mod, section(secType, []byte{0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00})...)

	imp := []byte{0x01}
	imp = append(imp, name("wasi_snapshot_preview1")...)
	imp = append(imp, name("proc_exit")...)
	imp = append(imp, 0x00, 0x00) // func kind, type 0
	mod = append(mod, section(secImport, imp)...)

	// one defined function of type 1
	mod = append(mod, section(secFunction, []byte{0x01, 0x01})...)

	exp := []byte{0x01}
	exp = append(exp, name("_start")...)
	exp = append(exp, 0x00, 0x01) // func kind, index 1 (after the import)
	mod = append(mod, section(secExport, exp)...)

	// body: i32.const code; call 0; end
	body := []byte{0x00, 0x41, byte(code), 0x10, 0x00, 0x0b}
	code1 := append(uleb(uint32(len(body))), body...)
	mod = append(mod, section(secCode, append([]byte{0x01}, code1...))...)
	return mod
}

// ModuleImporting returns a module exporting _start, which calls a nullary
// function fn imported from module mod.
func ModuleImporting(modName, fn string) []byte {
	out := append([]byte{}, header...)

	out = append(out, section(secType, []byte{0x01, 0x60, 0x00, 0x00})...)

	imp := []byte{0x01}
	imp = append(imp, name(modName)...)
	imp = append(imp, name(fn)...)
	imp = append(imp, 0x00, 0x00)
	out = append(out, section(secImport, imp)...)

	out = append(out, section(secFunction, []byte{0x01, 0x00})...)

	exp := []byte{0x01}
	exp = append(exp, name("_start")...)
	exp = append(exp, 0x00, 0x01)
	out = append(out, section(secExport, exp)...)

	// body: call 0; end
	body := []byte{0x00, 0x10, 0x00, 0x0b}
	code1 := append(uleb(uint32(len(body))), body...)
	out = append(out, section(secCode, append([]byte{0x01}, code1...))...)
	return out
}
