package token

import "context"

// Store persists the client's single TokenPair. Implementations must make
// Save atomic: a concurrent Load observes either the old pair or the new one,
// never a mix of fields. Load returns errors.ErrNoCredentials when nothing is
// stored.
type Store interface {
	Load(ctx context.Context) (TokenPair, error)
	Save(ctx context.Context, pair TokenPair) error
	Clear(ctx context.Context) error
}
