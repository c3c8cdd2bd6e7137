package testutil

import (
	"context"
	"os"

	"github.com/andrebq/secrets/userstore"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// AcquireUserStore opens an empty store under a temporary directory. The
// returned func closes it and removes the directory.
func AcquireUserStore(ctx context.Context, t TestLog) (*userstore.Store, func()) {
	dir, err := os.MkdirTemp("", "secrets-tests")
	if err != nil {
		t.Fatal(err)
	}
	store, err := userstore.Open(ctx, dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close user store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}
