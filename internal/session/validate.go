package session

import "fmt"

// maxNameLen bounds session names so derived paths stay short.
const maxNameLen = 64

// ValidateName checks that a session name is safe to use as a
// directory component: lowercase letters, digits, hyphen, underscore.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name is empty")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("session name %q exceeds %d characters", name, maxNameLen)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("session name %q contains %q: only lowercase letters, digits, '-' and '_' are allowed", name, r)
		}
	}
	return nil
}
