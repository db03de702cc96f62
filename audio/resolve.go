package audio

// Source records which preference a resolved device came from.
type Source int

const (
	SourcePreferred Source = iota
	SourcePrevious
	SourceFirst
)

func (s Source) String() string {
	switch s {
	case SourcePreferred:
		return "preferred"
	case SourcePrevious:
		return "previous"
	default:
		return "first available"
	}
}

// ResolveDevice picks the input to record from: the preferred device, then
// the previously used one, then the first available. Names match exactly.
func ResolveDevice(devices []DeviceInfo, preferred, previous string) (*DeviceInfo, Source, error) {
	if len(devices) == 0 {
		return nil, SourceFirst, ErrNoDevice
	}
	if d := findByName(devices, preferred); d != nil {
		return d, SourcePreferred, nil
	}
	if d := findByName(devices, previous); d != nil {
		return d, SourcePrevious, nil
	}
	return &devices[0], SourceFirst, nil
}

func findByName(devices []DeviceInfo, name string) *DeviceInfo {
	if name == "" {
		return nil
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i]
		}
	}
	return nil
}
