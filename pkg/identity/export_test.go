package identity

// SetHostID replaces the host id lookup.
func (d *DeviceInfo) SetHostID(fn func() (string, error)) {
	d.hostID = fn
}
