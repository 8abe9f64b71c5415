package models

// NotAvailable marks a field that the source page did not provide. External
// consumers rely on this exact value.
const NotAvailable = "N/A"

// Field is the outcome of extracting one value from a page: either a parsed
// value or nothing. Absence is expected and is not an error.
type Field[T any] struct {
	value T
	ok    bool
}

// Found wraps a successfully extracted value.
func Found[T any](v T) Field[T] {
	return Field[T]{value: v, ok: true}
}

// Missing returns an empty result.
func Missing[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the value and whether it was found.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.ok
}

// Ok reports whether a value was found.
func (f Field[T]) Ok() bool {
	return f.ok
}

// Or returns the value, or def when missing.
func (f Field[T]) Or(def T) T {
	if !f.ok {
		return def
	}
	return f.value
}

// TextField builds a string result, treating blank text as missing.
func TextField(s string) Field[string] {
	if s == "" {
		return Missing[string]()
	}
	return Found(s)
}

// OrNA resolves a string result to its value or the "N/A" sentinel.
func OrNA(f Field[string]) string {
	return f.Or(NotAvailable)
}
