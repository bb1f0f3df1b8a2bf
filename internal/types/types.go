// README: Common value objects shared across modules.
package types

// ID is an opaque record identifier (hex string from the ID generator,
// or an auth UID for riders and drivers).
type ID string

type Point struct {
	Lat float64
	Lng float64
}
