/*
Package randx provides identifier generation for gateway entities.

Connections and messages are both identified by standard UUID v4 strings.
*/
package randx

import "github.com/google/uuid"

// ConnID generates a UUID v4 string identifying one live transport connection.
func ConnID() string {
	return uuid.New().String()
}

// MessageID generates a UUID v4 string to serve as a unique message identifier.
func MessageID() string {
	return uuid.New().String()
}
