//go:build linux

package sequential

import (
	"os"

	"golang.org/x/sys/unix"
)

func platformAsyncSupported() bool { return true }

func pwrite(f *os.File, data []byte, off int64) (int, error) {
	for {
		n, err := unix.Pwrite(int(f.Fd()), data, off)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func fdatasync(f *os.File) error {
	for {
		err := unix.Fdatasync(int(f.Fd()))
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
