package led

// Controller abstracts LED hardware across boards.
type Controller interface {
	// Set controls an LED's state and optional pattern
	// Parameters:
	//   ledType: board-specific LED identifier (e.g., "act", "user", "blue")
	//   enabled: whether the LED should be on or off
	//   pattern: "solid", "blink", "heartbeat" or a raw trigger name;
	//            empty string leaves the trigger unchanged
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types supported by this controller
	Available() []string

	// Patterns returns the patterns supported by this controller
	Patterns() []string
}
