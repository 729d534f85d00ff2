/*
Package user contains the data structures describing user identity.

The gateway treats identities as opaque stable identifiers resolved by the
authentication collaborator; the display name is only used to enrich outbound
events for client rendering.
*/
package user

// User represents the basic identity information of a chat participant.
type User struct {
	// ID is the stable external identifier for the user.
	ID string `json:"id"`

	// Username is the display name shown in chat lists and messages.
	Username string `json:"username"`
}
