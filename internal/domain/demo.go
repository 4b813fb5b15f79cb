package domain

// DemoTanks returns the tanks seeded into an empty store.
func DemoTanks() []Tank {
	return []Tank{
		NewTank("T1", "Main Depot", 2.5, 4.0, "Yard A"),
		NewTank("T2", "Generator Backup", 1.5, 2.0, "Plant Room"),
		NewTank("T3", "Fleet Diesel", 3.0, 5.0, "Yard B"),
		NewTank("T4", "Heating Oil", 1.2, 1.8, ""),
	}
}
