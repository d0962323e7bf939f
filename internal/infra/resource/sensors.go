// Package resource samples this machine's thermal and battery state so the
// daemon can keep its own mesh node record honest: a hot or battery-stressed
// node should score lower in delegation decisions than one with headroom.
package resource

// Reading is one point-in-time sample of local hardware state.
type Reading struct {
	CPUTempC      int
	GPUTempC      int
	OnBattery     bool
	BatteryStress float64 // 0..100, 0 when not on battery or fully charged
}

// Sample reads the platform's sensors once. Any value that cannot be read
// on this platform comes back zero, which callers treat as "no pressure"
// rather than an error — a gateway with no thermal sensors should not be
// starved of delegation work because of it.
func Sample() Reading {
	t := NewThermalMonitor()
	b := NewBatteryMonitor()

	r := Reading{CPUTempC: t.CPUTemp(), GPUTempC: t.GPUTemp()}
	if b.IsPresent() {
		r.OnBattery = !b.IsCharging()
		if r.OnBattery {
			r.BatteryStress = 100 - float64(b.Percentage())
		}
	}
	return r
}

// ThermalMonitor reads CPU and GPU temperatures.
type ThermalMonitor struct{}

// NewThermalMonitor creates a thermal monitor.
func NewThermalMonitor() *ThermalMonitor {
	return &ThermalMonitor{}
}

// CPUTemp returns the CPU temperature in Celsius, or 0 when unavailable.
func (t *ThermalMonitor) CPUTemp() int {
	return readCPUTemp()
}

// GPUTemp returns the GPU temperature in Celsius, or 0 when unavailable.
func (t *ThermalMonitor) GPUTemp() int {
	return readGPUTemp()
}

// BatteryMonitor reads battery state.
type BatteryMonitor struct{}

// NewBatteryMonitor creates a battery monitor.
func NewBatteryMonitor() *BatteryMonitor {
	return &BatteryMonitor{}
}

// IsPresent returns true if the machine has a battery.
func (b *BatteryMonitor) IsPresent() bool {
	return hasBattery()
}

// Percentage returns battery charge level (0-100).
func (b *BatteryMonitor) Percentage() int {
	return batteryPercentage()
}

// IsCharging returns true if plugged in and charging.
func (b *BatteryMonitor) IsCharging() bool {
	return isBatteryCharging()
}
