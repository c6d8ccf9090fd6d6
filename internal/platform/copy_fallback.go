//go:build !linux

package platform

import "os"

// BulkMethods offers nothing outside Linux; every transfer uses read/write.
func BulkMethods(_, _ Kind) []CopyMethod { return nil }

// BulkCopy is never reached outside Linux.
func BulkCopy(method CopyMethod, _, _ *os.File, _ int64) (BulkResult, error) {
	return BulkResult{Method: method}, ErrBulkUnsupported
}
