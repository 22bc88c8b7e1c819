package main

// Command-line defaults
const (
	defaultConfigPath = "sphdoa-sim.yaml"
)

// Random stream derivation
const (
	seedStreamMix = 0x9e3779b97f4a7c15 // Second PCG word derived from the configured seed
)

// Reporting
const (
	degreesFormat = "%7.1f"
)
