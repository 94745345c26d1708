//go:build unix

package diskio

import (
	"os"

	"golang.org/x/sys/unix"
)

// preload sequentially reads the whole file once, the same brute-force
// warm-the-OS-cache approach the original implementation's preloader()
// used (src/detail/binary_file.cpp): open read-only, read in fixed-size
// chunks until EOF, ignore all errors since preloading is only a hint.
func preload(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	// Ask the OS to start reading ahead too; best-effort, errors ignored.
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)

	buf := make([]byte, 32*1024)
	for {
		n, err := f.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// applyAccessHints advises the kernel about the expected access pattern
// for the lifetime of the handle, mirroring the oflag::random /
// oflag::sequential hints the original sets via platform flags at open
// time (FILE_FLAG_RANDOM_ACCESS / FILE_FLAG_SEQUENTIAL_SCAN on Windows,
// posix_fadvise on POSIX).
func applyAccessHints(f *os.File, flags Flag) {
	switch {
	case flags&Random != 0:
		_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
	case flags&Sequential != 0:
		_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	}
}
