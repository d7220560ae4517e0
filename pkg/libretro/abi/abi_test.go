package abi

import (
	"testing"
	"unsafe"
)

func TestGoString(t *testing.T) {
	tests := []struct {
		in   *byte
		want string
	}{
		{in: nil, want: ""},
		{in: Bytes(""), want: ""},
		{in: Bytes("nestopia"), want: "nestopia"},
	}
	for _, test := range tests {
		if got := GoString(test.in); got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}

func TestCStrings(t *testing.T) {
	var cs CStrings
	a := cs.Get("/tmp/system")
	b := cs.Get("/tmp/system")
	if a != b {
		t.Errorf("the same string should have one address")
	}
	if GoString(a) != "/tmp/system" {
		t.Errorf("wrong string %v", GoString(a))
	}
	if cs.Get("x") == a {
		t.Errorf("different strings share an address")
	}
	cs.Release()
}

func TestIndex(t *testing.T) {
	arr := []ControllerDescription{{Id: 1}, {Id: 2}, {Id: 3}}
	if v := Index(&arr[0], 2); v.Id != 3 {
		t.Errorf("wrong element %v", v.Id)
	}
}

// The sizes must follow libretro.h on 64-bit targets.
func TestLayout(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("64-bit only")
	}
	tests := []struct {
		name string
		size uintptr
		want uintptr
	}{
		{"geometry", unsafe.Sizeof(Geometry{}), 20},
		{"av info", unsafe.Sizeof(SystemAvInfo{}), 40},
		{"variable", unsafe.Sizeof(Variable{}), 16},
		{"hw render", unsafe.Sizeof(HwRenderCallback{}), 64},
		{"subsystem rom", unsafe.Sizeof(SubsystemRomInfo{}), 40},
		{"subsystem", unsafe.Sizeof(SubsystemInfo{}), 32},
		{"option definition", unsafe.Sizeof(CoreOptionV2Definition{}), 6*8 + 128*16 + 8},
		{"perf", unsafe.Sizeof(PerfCallback{}), 56},
	}
	for _, test := range tests {
		if test.size != test.want {
			t.Errorf("%v: size %v, want %v", test.name, test.size, test.want)
		}
	}
	if off := unsafe.Offsetof(HwRenderCallback{}.Depth); off != 32 {
		t.Errorf("hw render depth offset %v", off)
	}
	if off := unsafe.Offsetof(HwRenderCallback{}.DebugContext); off != 56 {
		t.Errorf("hw render debug offset %v", off)
	}
}
