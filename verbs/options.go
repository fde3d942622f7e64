package verbs

// deviceConfig collects NewDevice's construction parameters, configured
// through the same functional-options idiom used for ring setup
// (uring.Option, which reactor.New also accepts), rather than a
// config-file/struct-tag library (see SPEC_FULL.md's AMBIENT STACK
// section).
type deviceConfig struct {
	name       string // empty selects the first available device
	rxDepth    uint32
	bufferSize int
	ibPort     uint8
}

// Option configures a Device constructed by NewDevice.
type Option func(*deviceConfig)

// WithDeviceName selects a specific verbs device by name (as reported by
// ibv_get_device_name) instead of the first one enumerated, matching
// original_source/src/verbs_util.rs's Device::new(name: Option<&str>, ...).
func WithDeviceName(name string) Option {
	return func(c *deviceConfig) { c.name = name }
}

// WithRxDepth sets the shared receive queue depth and, transitively, the
// completion queue size (rxDepth+1) and buffer pool size (2*rxDepth),
// matching spec.md §4.4's device-setup paragraph. Default 30, the
// source's own constant.
func WithRxDepth(n uint32) Option {
	return func(c *deviceConfig) { c.rxDepth = n }
}

// WithBufferSize sets the capacity, in bytes, of each pool buffer.
// Default matches original_source/src/verbs_util.rs's Device::new size
// parameter, which the caller there threads through from its own
// configuration; here it defaults to 4096 (one page), the allocation's
// own alignment.
func WithBufferSize(n int) Option {
	return func(c *deviceConfig) { c.bufferSize = n }
}

// WithIBPort selects the local port used for address resolution and QP
// attribute modification. Default 1, matching the source's ib_port.
func WithIBPort(port uint8) Option {
	return func(c *deviceConfig) { c.ibPort = port }
}

func newDeviceConfig(opts []Option) *deviceConfig {
	c := &deviceConfig{
		rxDepth:    30,
		bufferSize: 4096,
		ibPort:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
