package validate

// Typed accessors for normalized argument maps. They assume Validate has
// already run; a missing or mistyped field yields the zero value.

// Int64Arg returns the named integer argument.
func Int64Arg(args map[string]any, name string) int64 {
	n, _ := args[name].(int64)
	return n
}

// Float64Arg returns the named numeric argument.
func Float64Arg(args map[string]any, name string) float64 {
	x, _ := args[name].(float64)
	return x
}

// StringArg returns the named string argument.
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// TagsArg returns the named tag-map argument.
func TagsArg(args map[string]any, name string) map[string]string {
	m, _ := args[name].(map[string]string)
	return m
}
