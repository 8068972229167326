// Package clock provides a tiny time abstraction.
//
// Production code should depend on the Clocker interface instead of calling
// time.Now() directly. Quota bookkeeping depends on calendar days in the
// configured zone, so the clock also carries that location.
package clock
