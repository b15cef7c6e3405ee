// Package leak counts opened, closed and lost references per allocation site.
//
// A Counter hands out small integer indexes from Open. With stack logging on,
// every distinct caller stack gets its own index; with it off, everything
// shares index 0. The index travels with the guarded handle as its leak index
// and comes back through Close (explicit release) or Lost (the managed wrapper
// was collected unclosed). Report prints the per-site totals.
//
// A disabled counter (Max <= 0, or a nil *Counter) returns -1 from Open and
// from every count.
package leak
