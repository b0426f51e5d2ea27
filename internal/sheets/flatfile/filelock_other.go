//go:build !unix && !windows

package flatfile

import "os"

// No advisory locks here; only the in-process mutex applies.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
