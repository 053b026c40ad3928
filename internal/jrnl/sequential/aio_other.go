//go:build !linux

package sequential

import "os"

func platformAsyncSupported() bool { return false }

func pwrite(f *os.File, data []byte, off int64) (int, error) {
	return f.WriteAt(data, off)
}

func fdatasync(f *os.File) error {
	return f.Sync()
}
