package utils

// IsValidGroupField reports whether field can be used to aggregate access events.
func IsValidGroupField(field string) bool {
	switch field {
	case "country", "city", "browser":
		return true
	default:
		return false
	}
}
