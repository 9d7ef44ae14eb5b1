//go:build !unix

package usage

// probeQuota has no portable implementation here; the quota stays unknown.
func probeQuota(string) Quota {
	return Quota{}
}
