//go:build !unix

package diskio

import "os"

// preload is the portable fallback: a plain sequential read with no OS
// hinting, since golang.org/x/sys/unix's fadvise is unix-only.
func preload(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := f.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

func applyAccessHints(*os.File, Flag) {}
