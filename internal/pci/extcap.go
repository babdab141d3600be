package pci

const (
	// extCapStart is where the extended capability list begins in
	// configuration space.
	extCapStart = 0x100

	// Extended config space is 4KB; each capability header is at least
	// 8 bytes, which bounds the walk against malformed lists.
	extCapMaxVisits = (4096 - extCapStart) / 8
)

// FindExtCapability walks the extended capability list and returns the
// offset of the first capability with the given id, or 0 if the device
// does not expose it. A read failure anywhere in the walk is an error.
func FindExtCapability(d Device, id uint16) (int, error) {
	offset := extCapStart
	for visits := 0; visits < extCapMaxVisits; visits++ {
		header, err := d.ReadConfig32(offset)
		if err != nil {
			return 0, err
		}
		// An empty list reads as all zeroes (or all ones on devices
		// without extended config space).
		if header == 0 || header == 0xffffffff {
			return 0, nil
		}
		if uint16(header&0xffff) == id {
			return offset, nil
		}
		offset = int(header >> 20)
		if offset < extCapStart {
			return 0, nil
		}
	}
	return 0, nil
}
