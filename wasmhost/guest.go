package wasmhost

// DemoGuest is a minimal guest module equivalent to:
//
//	(module
//	  (import "nativeguard" "read" (func $read (param i64 i32 i32) (result i32)))
//	  (memory (export "memory") 1)
//	  (func (export "run") (param $addr i64) (result i32)
//	    (call $read (local.get $addr) (i32.const 0) (i32.const 1024))))
//
// run copies the message at addr to offset 0 of its memory and returns the
// number of bytes copied.
var DemoGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type
	0x01, 0x0d, 0x02,
	0x60, 0x03, 0x7e, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7e, 0x01, 0x7f,
	// import nativeguard.read
	0x02, 0x14, 0x01,
	0x0b, 'n', 'a', 't', 'i', 'v', 'e', 'g', 'u', 'a', 'r', 'd',
	0x04, 'r', 'e', 'a', 'd', 0x00, 0x00,
	// function
	0x03, 0x02, 0x01, 0x01,
	// memory
	0x05, 0x03, 0x01, 0x00, 0x01,
	// export memory, run
	0x07, 0x10, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x03, 'r', 'u', 'n', 0x00, 0x01,
	// code
	0x0a, 0x0d, 0x01, 0x0b, 0x00,
	0x20, 0x00, // local.get 0
	0x41, 0x00, // i32.const 0
	0x41, 0x80, 0x08, // i32.const 1024
	0x10, 0x00, // call 0
	0x0b,
}
