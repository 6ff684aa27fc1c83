// internal/service/inference/models.go
package inference

// defaultModelLengths is the manufacturer+model reference table of typical
// body lengths in feet, keyed "MANUFACTURER|MODEL". Sourced from published
// manufacturer body specifications for the truck models common on the
// platform.
func defaultModelLengths() map[string]float64 {
	return map[string]float64{
		"TATA MOTORS|407":       9,
		"TATA MOTORS|709":       14,
		"TATA MOTORS|909":       16,
		"TATA MOTORS|1109":      17,
		"TATA MOTORS|1512":      19,
		"TATA MOTORS|1613":      19,
		"TATA MOTORS|2518":      22,
		"TATA MOTORS|3118":      24,
		"TATA MOTORS|3518":      28,
		"TATA MOTORS|4018":      32,
		"ASHOK LEYLAND|DOST":    8,
		"ASHOK LEYLAND|PARTNER": 14,
		"ASHOK LEYLAND|BOSS":    17,
		"ASHOK LEYLAND|ECOMET":  19,
		"ASHOK LEYLAND|1616":    19,
		"ASHOK LEYLAND|2820":    22,
		"ASHOK LEYLAND|3520":    28,
		"EICHER|PRO 1110":       17,
		"EICHER|PRO 2049":       9,
		"EICHER|PRO 3015":       19,
		"EICHER|PRO 6028":       24,
		"EICHER|PRO 6035":       28,
		"MAHINDRA|FURIO 7":      14,
		"MAHINDRA|FURIO 12":     17,
		"MAHINDRA|FURIO 16":     19,
		"MAHINDRA|BLAZO X 28":   24,
		"MAHINDRA|BLAZO X 35":   28,
		"BHARATBENZ|1015R":      17,
		"BHARATBENZ|1617R":      19,
		"BHARATBENZ|2823R":      22,
		"BHARATBENZ|3523R":      28,
		"BHARATBENZ|4228R":      32,
	}
}
