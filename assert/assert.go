// Package assert provides minimal test assertions with an expected-first
// argument order and a mandatory message describing what is being checked.
package assert

import (
	"cmp"
	"reflect"
	"strings"
	"testing"
)

// Equal fails the test when expected and actual are not deeply equal.
func Equal[T any](t *testing.T, expected, actual T, msg string) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// NotEqual fails the test when unexpected and actual are deeply equal.
func NotEqual[T any](t *testing.T, unexpected, actual T, msg string) {
	t.Helper()
	if reflect.DeepEqual(unexpected, actual) {
		t.Errorf("%s: expected value different from %v", msg, unexpected)
	}
}

// True fails the test when cond is false.
func True(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Errorf("%s: expected true", msg)
	}
}

// False fails the test when cond is true.
func False(t *testing.T, cond bool, msg string) {
	t.Helper()
	if cond {
		t.Errorf("%s: expected false", msg)
	}
}

// Nil fails the test when v is neither nil nor a nil pointer/slice/map.
func Nil(t *testing.T, v any, msg string) {
	t.Helper()
	if !isNil(v) {
		t.Errorf("%s: expected nil, got %v", msg, v)
	}
}

// NotNil fails the test when v is nil or a nil pointer/slice/map.
func NotNil(t *testing.T, v any, msg string) {
	t.Helper()
	if isNil(v) {
		t.Errorf("%s: expected non-nil value", msg)
	}
}

// NoError fails the test when err is non-nil.
func NoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// Error fails the test when err is nil.
func Error(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected an error, got nil", msg)
	}
}

// Len fails the test when the collection's length differs from expected.
func Len(t *testing.T, expected int, collection any, msg string) {
	t.Helper()
	v := reflect.ValueOf(collection)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		if v.Len() != expected {
			t.Errorf("%s: expected length %d, got %d", msg, expected, v.Len())
		}
	default:
		t.Errorf("%s: cannot take length of %T", msg, collection)
	}
}

// Contains fails the test when haystack does not contain needle.
func Contains(t *testing.T, haystack, needle, msg string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("%s: %q does not contain %q", msg, haystack, needle)
	}
}

// Greater fails the test unless actual > threshold.
func Greater[T cmp.Ordered](t *testing.T, actual, threshold T, msg string) {
	t.Helper()
	if actual <= threshold {
		t.Errorf("%s: expected %v > %v", msg, actual, threshold)
	}
}

// GreaterOrEqual fails the test unless actual >= threshold.
func GreaterOrEqual[T cmp.Ordered](t *testing.T, actual, threshold T, msg string) {
	t.Helper()
	if actual < threshold {
		t.Errorf("%s: expected %v >= %v", msg, actual, threshold)
	}
}

// Less fails the test unless actual < threshold.
func Less[T cmp.Ordered](t *testing.T, actual, threshold T, msg string) {
	t.Helper()
	if actual >= threshold {
		t.Errorf("%s: expected %v < %v", msg, actual, threshold)
	}
}

// LessOrEqual fails the test unless actual <= threshold.
func LessOrEqual[T cmp.Ordered](t *testing.T, actual, threshold T, msg string) {
	t.Helper()
	if actual > threshold {
		t.Errorf("%s: expected %v <= %v", msg, actual, threshold)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
