//go:build !linux && !darwin && !windows

package dashboard

func diskUsage(path string) DiskStats {
	return DiskStats{Path: path}
}
