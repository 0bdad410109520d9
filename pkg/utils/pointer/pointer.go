package pointer

// Ref returns a pointer to a copy of t.
//
// Handy for optional fields of kubernetes objects.
func Ref[T any](t T) *T {
	return &t
}
