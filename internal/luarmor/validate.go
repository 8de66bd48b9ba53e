package luarmor

import "regexp"

// Discord snowflakes are 17-20 digit decimal strings.
var discordIDPattern = regexp.MustCompile(`^[0-9]{17,20}$`)

const maxUserKeyLength = 255

func validateDiscordID(id string) *APIError {
	if !discordIDPattern.MatchString(id) {
		return &APIError{Type: ErrorTypeValidation, Message: "Invalid Discord ID format"}
	}
	return nil
}

func validateUserKey(key string) *APIError {
	switch key {
	case "", "null", "undefined":
		return &APIError{Type: ErrorTypeValidation, Message: "Invalid user key"}
	}
	if len(key) > maxUserKeyLength {
		return &APIError{Type: ErrorTypeValidation, Message: "Invalid user key"}
	}
	return nil
}

func validateUnbanToken(token string) *APIError {
	switch token {
	case "", "null", "undefined":
		return &APIError{Type: ErrorTypeValidation, Message: "Invalid unban token"}
	}
	return nil
}
