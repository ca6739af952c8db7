package driver

import (
	"fmt"
	"io"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"uart-test/logger"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	Description  string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Swapped out in tests
var (
	detailedPortsList = enumerator.GetDetailedPortsList
	plainPortsList    = serial.GetPortsList
)

// ListPorts returns every serial port the OS exposes. When the detailed
// enumerator fails, port names are still returned without descriptions.
func ListPorts() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err == nil {
		result := make([]PortInfo, 0, len(details))
		for _, p := range details {
			result = append(result, PortInfo{
				Name:         p.Name,
				Description:  describe(p),
				IsUSB:        p.IsUSB,
				VID:          p.VID,
				PID:          p.PID,
				SerialNumber: p.SerialNumber,
			})
		}
		return result, nil
	}
	logger.Error("Detailed port enumeration failed: %v", err)

	names, err := plainPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	result := make([]PortInfo, 0, len(names))
	for _, name := range names {
		result = append(result, PortInfo{Name: name, Description: "n/a"})
	}
	return result, nil
}

func describe(p *enumerator.PortDetails) string {
	switch {
	case p.Product != "":
		return p.Product
	case p.IsUSB:
		desc := fmt.Sprintf("USB VID:PID=%s:%s", p.VID, p.PID)
		if p.SerialNumber != "" {
			desc += " SER=" + p.SerialNumber
		}
		return desc
	}
	return "n/a"
}

// PrintPorts writes the operator-facing port listing
func PrintPorts(w io.Writer) {
	fmt.Fprintln(w, "Available serial ports:")

	ports, err := ListPorts()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "  No serial ports found")
		return
	}
	for _, p := range ports {
		fmt.Fprintf(w, "  %s: %s\n", p.Name, p.Description)
	}
}
