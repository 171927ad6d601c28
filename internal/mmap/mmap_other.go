//go:build !unix

package mmap

import "os"

// Fallback for platforms without mmap support: read the whole file
// and use heap memory for anonymous mappings.

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil {
		return nil, nil, err
	}
	return data, func([]byte) error { return nil }, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}

func osAdvise([]byte, AccessPattern) error {
	return nil
}
