package locate

import (
	"go.bug.st/serial/enumerator"
)

// USBLister enumerates the host's serial ports with their USB descriptors.
type USBLister struct{}

func (USBLister) List() ([]Candidate, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(details))
	for _, d := range details {
		c := Candidate{Path: d.Name}
		if d.IsUSB {
			c.VID = d.VID
			c.PID = d.PID
		}
		out = append(out, c)
	}
	return out, nil
}
