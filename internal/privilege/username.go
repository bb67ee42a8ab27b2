package privilege

import "fmt"

// MaxUsernameLength is the longest login name accepted.
const MaxUsernameLength = 32

// Username is a login name that passed ValidateUsername.
// It has no exported constructor other than ValidateUsername, so holding a
// Username is proof that the value was checked.
type Username struct {
	name string
}

// String returns the login name.
func (u Username) String() string { return u.name }

// ValidationError is returned for an identity string outside the policy.
type ValidationError struct {
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid username %q: %s", e.Value, e.Reason)
}

func (e *ValidationError) InvalidInput() bool { return true }

// ValidateUsername accepts 1 to 32 characters from [A-Za-z0-9_-] and
// nothing else. There is no escaping fallback: the value ends up in command
// lines, and rejecting everything outside this class is the whole defense.
func ValidateUsername(raw string) (Username, error) {
	if raw == "" {
		return Username{}, &ValidationError{Value: raw, Reason: "empty"}
	}
	if len(raw) > MaxUsernameLength {
		return Username{}, &ValidationError{
			Value:  raw,
			Reason: fmt.Sprintf("longer than %d characters", MaxUsernameLength),
		}
	}
	for i := 0; i < len(raw); i++ {
		if !usernameByte(raw[i]) {
			return Username{}, &ValidationError{
				Value:  raw,
				Reason: fmt.Sprintf("character %q at offset %d is not allowed", raw[i], i),
			}
		}
	}
	return Username{name: raw}, nil
}

func usernameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '-':
		return true
	}
	return false
}
