package storage

// KV is the persistence port behind the session store.
// Implementations must survive process restarts unless they are explicitly ephemeral,
// and Read must report an unset key as ok == false rather than as an error.
type KV interface {
	// Read returns the stored value for key
	Read(key string) (value string, ok bool, err error)

	// Write stores value under key, replacing any previous value
	Write(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}
