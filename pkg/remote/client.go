// Package remote holds the session contract the sync engine drives, its
// FTP implementation, and the parser for recursive directory listings.
package remote

import (
	"io"

	"github.com/sidkik/ftpmirror/pkg/errors"
)

// Client is one remote file-transfer session. Implementations are
// stateful: a session is established once, used strictly sequentially for
// the whole run, and torn down with Quit.
type Client interface {
	// ListRecursive returns the raw recursive listing text of the remote
	// root. The caller parses it with ParseListing.
	ListRecursive() (string, error)

	// Put uploads r to the given remote path.
	Put(remotePath string, r io.Reader) error

	// Delete removes a remote file. Deleting a file that's already absent
	// fails with a not-found error; see IsNotFound.
	Delete(remotePath string) error

	// MkdirAll creates the directory and any missing parents.
	MkdirAll(dir string) error

	// Rmdir removes an empty directory.
	Rmdir(dir string) error

	// Quit tears the session down.
	Quit() error
}

// lazyClient defers dialing until the first operation, so a run whose plan
// turns out to be empty never opens a session.
type lazyClient struct {
	dial   func() (Client, error)
	client Client
}

// NewLazy wraps dial in a Client that connects on first use.
func NewLazy(dial func() (Client, error)) Client {
	return &lazyClient{dial: dial}
}

// DialError marks a failure to establish the session. Nothing downstream
// can proceed without one, so callers abort the run on the first DialError
// instead of redialing an unreachable server once per remaining operation.
type DialError struct {
	Err error
}

func (err DialError) Error() string {
	return err.Err.Error()
}

// IsDialError reports whether err stems from failing to establish the
// session.
func IsDialError(err error) bool {
	_, ok := errors.RootCause(err).(DialError)
	return ok
}

func (lazy *lazyClient) get() (Client, error) {
	if lazy.client == nil {
		client, err := lazy.dial()
		if err != nil {
			return nil, DialError{Err: err}
		}
		lazy.client = client
	}
	return lazy.client, nil
}

func (lazy *lazyClient) ListRecursive() (string, error) {
	client, err := lazy.get()
	if err != nil {
		return "", err
	}
	return client.ListRecursive()
}

func (lazy *lazyClient) Put(remotePath string, r io.Reader) error {
	client, err := lazy.get()
	if err != nil {
		return err
	}
	return client.Put(remotePath, r)
}

func (lazy *lazyClient) Delete(remotePath string) error {
	client, err := lazy.get()
	if err != nil {
		return err
	}
	return client.Delete(remotePath)
}

func (lazy *lazyClient) MkdirAll(dir string) error {
	client, err := lazy.get()
	if err != nil {
		return err
	}
	return client.MkdirAll(dir)
}

func (lazy *lazyClient) Rmdir(dir string) error {
	client, err := lazy.get()
	if err != nil {
		return err
	}
	return client.Rmdir(dir)
}

// Quit on a session that was never established is a no-op.
func (lazy *lazyClient) Quit() error {
	if lazy.client == nil {
		return nil
	}
	return lazy.client.Quit()
}
