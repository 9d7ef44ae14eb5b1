//go:build unix

package usage

import "syscall"

// probeQuota reads the capacity of the filesystem holding path. Any failure
// yields an unknown quota rather than an error.
func probeQuota(path string) Quota {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return Quota{}
	}
	bsize := int64(st.Bsize)
	total := int64(st.Blocks) * bsize
	avail := int64(st.Bavail) * bsize
	if total <= 0 {
		return Quota{}
	}
	used := total - avail
	return Quota{
		Known:          true,
		TotalBytes:     total,
		UsedBytes:      used,
		AvailableBytes: avail,
		UsedPercent:    float64(used) / float64(total) * 100,
	}
}
