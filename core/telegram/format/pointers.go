package format

// DerefString safely dereferences a *string and returns a default value if nil or empty.
func DerefString(s *string, defaultVal string) string {
	if s != nil && *s != "" {
		return *s
	}
	return defaultVal
}

// OptionalString returns nil for an empty string so optional columns stay NULL.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
