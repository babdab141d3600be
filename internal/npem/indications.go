package npem

// Indication is one named status signal mapped to a single bit of the
// backend's state word. Tables are backend specific: the two backends
// share the standard bit assignments but the firmware interface does not
// define the enclosure-specific block.
type Indication struct {
	Bit  uint32
	Name string
}

// Control bits of the register backend's capability/control registers.
// They are mechanism, not indications, and never appear in a table.
const (
	npemEnable uint32 = 1 << 0
	npemReset  uint32 = 1 << 1

	// Command-complete bit of the status register.
	npemCC uint32 = 1 << 0
)

// Register block layout, relative to the capability block offset.
const (
	regCap    = 0x04
	regCtrl   = 0x08
	regStatus = 0x0c
)

// capNPEM is the extended capability id of the indication control block.
const capNPEM = 0x29

var registerIndications = []Indication{
	{Bit: 1 << 2, Name: "ok"},
	{Bit: 1 << 3, Name: "locate"},
	{Bit: 1 << 4, Name: "failure"},
	{Bit: 1 << 5, Name: "rebuild"},
	{Bit: 1 << 6, Name: "pfa"},
	{Bit: 1 << 7, Name: "hotspare"},
	{Bit: 1 << 8, Name: "ica"},
	{Bit: 1 << 9, Name: "ifa"},
	{Bit: 1 << 10, Name: "invalid_device"},
	{Bit: 1 << 11, Name: "disabled"},
	{Bit: 1 << 24, Name: "specific_0"},
	{Bit: 1 << 25, Name: "specific_1"},
	{Bit: 1 << 26, Name: "specific_2"},
	{Bit: 1 << 27, Name: "specific_3"},
	{Bit: 1 << 28, Name: "specific_4"},
	{Bit: 1 << 29, Name: "specific_5"},
	{Bit: 1 << 30, Name: "specific_6"},
	{Bit: 1 << 31, Name: "specific_7"},
}

var firmwareIndications = []Indication{
	{Bit: 1 << 2, Name: "ok"},
	{Bit: 1 << 3, Name: "locate"},
	{Bit: 1 << 4, Name: "failure"},
	{Bit: 1 << 5, Name: "rebuild"},
	{Bit: 1 << 6, Name: "pfa"},
	{Bit: 1 << 7, Name: "hotspare"},
	{Bit: 1 << 8, Name: "ica"},
	{Bit: 1 << 9, Name: "ifa"},
	{Bit: 1 << 10, Name: "invalid_device"},
	{Bit: 1 << 11, Name: "disabled"},
}

// tableMask returns the union of all indication bits in a table.
func tableMask(table []Indication) uint32 {
	var mask uint32
	for _, ind := range table {
		mask |= ind.Bit
	}
	return mask
}
