package phantombuster

import "sync"

var (
	sharedOnce   sync.Once
	sharedClient *Client
	sharedErr    error

	// newSharedClient is swapped in tests to count constructions.
	newSharedClient = NewClient
)

// Shared returns the process-wide client, building it on first use. Construction
// happens at most once even under concurrent first calls; options passed after
// the first call are ignored and a construction error is returned on every call.
func Shared(opts ...Option) (*Client, error) {
	sharedOnce.Do(func() {
		sharedClient, sharedErr = newSharedClient(opts...)
	})
	return sharedClient, sharedErr
}

func resetShared() {
	sharedOnce = sync.Once{}
	sharedClient = nil
	sharedErr = nil
}
