//go:build arm64

package mmio

// dataBarrier issues a DSB ISH so that preceding stores complete before
// any later access, from this core or the device, can observe them.
func dataBarrier()
