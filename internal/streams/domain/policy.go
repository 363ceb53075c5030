package streams

// Funding policy constants, in seconds.
const (
	SecondsPerMonth  = 2_592_000 // 30-day month
	BufferSeconds    = 14_400    // 4-hour safety buffer
	MinRunwaySeconds = 604_800   // 7-day minimum runway at creation

	HealthyRunwaySeconds = 604_800
	WarningRunwaySeconds = 86_400
)

const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// FlowRatePerSecond derives the per-second flow rate from a monthly rate.
func FlowRatePerSecond(flowRatePerMonth float64) float64 {
	return flowRatePerMonth / SecondsPerMonth
}

// Buffer returns the fixed safety reserve held in addition to principal.
func Buffer(flowRatePerSecond float64) float64 {
	return flowRatePerSecond * BufferSeconds
}

// MinimumFunding returns the smallest acceptable initial funding: the
// buffer plus a seven-day runway at the given rate.
func MinimumFunding(flowRatePerSecond float64) float64 {
	return Buffer(flowRatePerSecond) + flowRatePerSecond*MinRunwaySeconds
}

// HealthForRunway maps remaining runway to a health label.
func HealthForRunway(runwaySeconds int64) string {
	switch {
	case runwaySeconds > HealthyRunwaySeconds:
		return HealthHealthy
	case runwaySeconds > WarningRunwaySeconds:
		return HealthWarning
	default:
		return HealthCritical
	}
}
