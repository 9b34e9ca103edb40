package sessions

// Repo defines the durable storage of the session record.
// The Session Store is its only writer.
type Repo interface {
	// Load returns the stored record. Missing slots are left empty, an empty
	// store returns an empty record and no error.
	Load() (*Record, error)

	// Save writes all three slots together (login)
	Save(rec *Record) error

	// SaveAccess rewrites the access slot alone (refresh)
	SaveAccess(access string) error

	// Clear removes all three slots. Clearing an empty store is not an error.
	Clear() error
}
