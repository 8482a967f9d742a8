// ABOUTME: Generic test assertions
// ABOUTME: Small fatal-on-failure helpers for channels, errors and values
package assert

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

const timeout = 5 * time.Second

// ChanWritten returns the value written to chan c or times out.
func ChanWritten[T any](t testing.TB, c chan T) T {
	t.Helper()
	var v T
	select {
	case v = <-c:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for chan read")
	}
	return v
}

// ChanNotWritten asserts that the chan is not written at least until the
// passed timeout value.
func ChanNotWritten[T any](t testing.TB, c chan T, timeout time.Duration) {
	t.Helper()
	select {
	case v := <-c:
		t.Fatalf("channel was written with value %v", v)
	case <-time.After(timeout):
	}
}

// DeepEqual asserts got is reflect.DeepEqual to want.
func DeepEqual[T any](t testing.TB, got, want T) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Unexpected values: got %v, want %v", got, want)
	}
}

// Equal asserts got == want.
func Equal[T comparable](t testing.TB, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("Unexpected value: got %v, want %v", got, want)
	}
}

// ErrorIs asserts that errors.Is(got, want).
func ErrorIs(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("Unexpected error: got %v, want %v", got, want)
	}
}

// NilErr fails the test if err is non-nil.
func NilErr(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected non-nil error: %v", err)
	}
}

// NonNilErr fails the test if err is nil.
func NonNilErr(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("Unexpected nil error")
	}
}

// BoolIs asserts got == want.
func BoolIs(t testing.TB, got, want bool) {
	t.Helper()
	if got != want {
		t.Fatalf("Unexpected bool: got %v, want %v", got, want)
	}
}

// Panics asserts that f panics.
func Panics(t testing.TB, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("function did not panic")
		}
	}()
	f()
}

// DoesNotBlock asserts that f returns in a timely fashion.
func DoesNotBlock(t testing.TB, f func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	go func() {
		f()
		cancel()
	}()
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatal("timeout waiting for function to finish")
	}
}

// Eventually polls cond until it returns true or times out.
func Eventually(t testing.TB, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Contains asserts that s contains e.
func Contains[S ~[]E, E comparable](t testing.TB, s S, e E) {
	t.Helper()
	for _, v := range s {
		if v == e {
			return
		}
	}
	t.Fatalf("%v does not contain %v", s, e)
}
